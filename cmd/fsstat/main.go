// Command fsstat reports block and inode utilization for an existing
// file system image.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mit-pdos/go-sixfs/disk"
	"github.com/mit-pdos/go-sixfs/fs"
	"github.com/mit-pdos/go-sixfs/stats"
)

func main() {
	var size uint64
	flag.Uint64Var(&size, "size", 10000, "image size in blocks (must match mkfs)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: fsstat [-size blocks] image-path")
		os.Exit(1)
	}
	path := flag.Arg(0)

	fd, err := disk.OpenFileDisk(path, size)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fsstat: %v\n", err)
		os.Exit(1)
	}
	defer fd.Close()
	d := disk.NewTimed(fd)

	fsys := fs.OpenFs(d)

	usedBlocks, totalBlocks := fsys.Balloc.Used()
	usedInodes, totalInodes := fsys.Ialloc.Used()

	fmt.Printf("image:  %s\n", path)
	fmt.Printf("blocks: %d/%d used (%.1f%%)\n", usedBlocks, totalBlocks,
		100*float64(usedBlocks)/float64(totalBlocks))
	fmt.Printf("inodes: %d/%d used (%.1f%%)\n", usedInodes, totalInodes,
		100*float64(usedInodes)/float64(totalInodes))

	names, ops := fsys.Bc.Stats()
	stats.WriteTable(names, ops, os.Stdout)
	d.WriteStats(os.Stdout)
}

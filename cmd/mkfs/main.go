// Command mkfs formats a fresh file system image.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mit-pdos/go-sixfs/disk"
	"github.com/mit-pdos/go-sixfs/fs"
)

func main() {
	var size uint64
	var ninodes uint64
	var showStats bool
	flag.Uint64Var(&size, "size", 10000, "image size in blocks")
	flag.Uint64Var(&ninodes, "ninodes", 200, "number of inodes")
	flag.BoolVar(&showStats, "stats", false, "print disk I/O counts after formatting")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: mkfs [-size blocks] [-ninodes n] image-path")
		os.Exit(1)
	}
	path := flag.Arg(0)

	fd, err := disk.NewFileDisk(path, size)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: %v\n", err)
		os.Exit(1)
	}
	defer fd.Close()
	d := disk.NewTimed(fd)

	fsys := fs.Mkfs(d, size, ninodes)
	fmt.Printf("mkfs: %s: %d blocks, %d inodes, log at %d (%d blocks), data starts at %d\n",
		path, fsys.Sb.Size, fsys.Sb.Ninodes, fsys.Sb.LogStart, fsys.Sb.Nlog, fsys.Sb.DataStart)

	if showStats {
		d.WriteStats(os.Stdout)
	}
}

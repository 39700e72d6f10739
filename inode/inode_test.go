package inode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/go-sixfs/alloc"
	"github.com/mit-pdos/go-sixfs/bcache"
	"github.com/mit-pdos/go-sixfs/disk"
	"github.com/mit-pdos/go-sixfs/super"
	"github.com/mit-pdos/go-sixfs/wal"
)

const nInodes = 50

func mkTestItable(t *testing.T, nblocks uint64) (*Itable, *wal.Log) {
	sb := super.MkSuperblock(sb_size(nblocks), nInodes)
	d := disk.NewMemDisk(sb.Size)
	bc := bcache.MkBcache(d)
	log := wal.MkLog(bc, sb.LogStart, sb.Nlog-1)
	log.Recover()
	balloc := alloc.MkAlloc(bc, log, sb.BmapStart, sb.Nblocks)
	ialloc := alloc.MkAlloc(bc, log, sb.IbmapStart, sb.Ninodes)

	log.BeginOp()
	// reserve inum 0 (null) and 1 (root) so dynamic Ialloc starts at 2
	ialloc.AllocNum()
	ialloc.AllocNum()
	log.EndOp()

	env := &Env{Bc: bc, Log: log, Sb: sb, Ialloc: ialloc, Balloc: balloc}
	return MkItable(env), log
}

func sb_size(dataBlocks uint64) uint64 {
	// generous upper bound: header room plus requested data blocks
	return dataBlocks + 200
}

func TestIallocIupdateIget(t *testing.T) {
	it, log := mkTestItable(t, 100)

	log.BeginOp()
	ip := it.Ialloc(File)
	require.NotNil(t, ip)
	inum := ip.Inum()
	it.Iunlockput(ip)
	log.EndOp()

	log.BeginOp()
	ip2 := it.Iget(inum)
	it.Ilock(ip2)
	require.Equal(t, File, ip2.Type)
	it.Iunlockput(ip2)
	log.EndOp()
}

func TestStati(t *testing.T) {
	it, log := mkTestItable(t, 100)

	log.BeginOp()
	ip := it.Ialloc(Dev)
	ip.Major = 1
	ip.Minor = 2
	it.Writei(ip, 0, []byte("xy"))
	st := Stati(ip)
	it.Iunlockput(ip)
	log.EndOp()

	require.Equal(t, Dev, st.Type)
	require.Equal(t, uint32(1), st.Nlink)
	require.Equal(t, uint64(2), st.Size)
	require.Equal(t, uint32(1), st.Major)
	require.Equal(t, uint32(2), st.Minor)
}

func TestWriteiReadiRoundtrip(t *testing.T) {
	it, log := mkTestItable(t, 100)

	log.BeginOp()
	ip := it.Ialloc(File)
	data := []byte("hello, file system")
	n := it.Writei(ip, 0, data)
	require.Equal(t, uint64(len(data)), n)
	it.Iunlockput(ip)
	log.EndOp()

	log.BeginOp()
	ip2 := it.Iget(ip.Inum())
	it.Ilock(ip2)
	got := it.Readi(ip2, 0, uint64(len(data)))
	require.Equal(t, data, got)
	it.Iunlockput(ip2)
	log.EndOp()
}

func TestWriteSpanningIndirectBlocks(t *testing.T) {
	it, log := mkTestItable(t, NDIRECT+NINDIRECT+20)

	log.BeginOp()
	ip := it.Ialloc(File)
	// write into block NDIRECT+1, which requires the single-indirect
	// block to be allocated. Writei refuses to start past EOF, so the
	// file is first filled up to that offset.
	off := (NDIRECT + 1) * disk.BlockSize
	require.Equal(t, off, it.Writei(ip, 0, make([]byte, off)))
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}
	n := it.Writei(ip, off, data)
	require.Equal(t, uint64(len(data)), n)
	it.Iunlockput(ip)
	log.EndOp()

	log.BeginOp()
	ip2 := it.Iget(ip.Inum())
	it.Ilock(ip2)
	got := it.Readi(ip2, off, uint64(len(data)))
	require.Equal(t, data, got)
	it.Iunlockput(ip2)
	log.EndOp()
}

func TestItruncFreesBlocks(t *testing.T) {
	it, log := mkTestItable(t, 100)

	log.BeginOp()
	ip := it.Ialloc(File)
	it.Writei(ip, 0, make([]byte, disk.BlockSize*3))
	ip.Nlink = 0
	it.Iunlockput(ip) // ref drops to 0 with nlink 0: truncates and frees
	log.EndOp()
}

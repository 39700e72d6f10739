package dir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/go-sixfs/alloc"
	"github.com/mit-pdos/go-sixfs/bcache"
	"github.com/mit-pdos/go-sixfs/disk"
	"github.com/mit-pdos/go-sixfs/inode"
	"github.com/mit-pdos/go-sixfs/super"
	"github.com/mit-pdos/go-sixfs/wal"
)

func mkTestItable(t *testing.T) (*inode.Itable, *wal.Log) {
	sb := super.MkSuperblock(300, 50)
	d := disk.NewMemDisk(sb.Size)
	bc := bcache.MkBcache(d)
	log := wal.MkLog(bc, sb.LogStart, sb.Nlog-1)
	log.Recover()
	balloc := alloc.MkAlloc(bc, log, sb.BmapStart, sb.Nblocks)
	ialloc := alloc.MkAlloc(bc, log, sb.IbmapStart, sb.Ninodes)

	log.BeginOp()
	ialloc.AllocNum()
	ialloc.AllocNum()
	log.EndOp()

	env := &inode.Env{Bc: bc, Log: log, Sb: sb, Ialloc: ialloc, Balloc: balloc}
	return inode.MkItable(env), log
}

func TestLinkLookupUnlink(t *testing.T) {
	it, log := mkTestItable(t)

	log.BeginOp()
	dp := it.Ialloc(inode.Dir)
	require.True(t, Init(it, dp, dp.Inum()))

	fp := it.Ialloc(inode.File)
	require.True(t, Link(it, dp, "a.txt", fp.Inum()))

	inum, _, ok := Lookup(it, dp, "a.txt")
	require.True(t, ok)
	require.Equal(t, fp.Inum(), inum)

	require.True(t, Unlink(it, dp, "a.txt"))
	_, _, ok = Lookup(it, dp, "a.txt")
	require.False(t, ok)

	it.Iunlockput(fp)
	it.Iunlockput(dp)
	log.EndOp()
}

func TestIsEmptyIgnoresDotEntries(t *testing.T) {
	it, log := mkTestItable(t)

	log.BeginOp()
	dp := it.Ialloc(inode.Dir)
	require.True(t, Init(it, dp, dp.Inum()))
	require.True(t, IsEmpty(it, dp))

	fp := it.Ialloc(inode.File)
	require.True(t, Link(it, dp, "x", fp.Inum()))
	require.False(t, IsEmpty(it, dp))

	it.Iunlockput(fp)
	it.Iunlockput(dp)
	log.EndOp()
}

func TestLinkReusesFreedSlot(t *testing.T) {
	it, log := mkTestItable(t)

	log.BeginOp()
	dp := it.Ialloc(inode.Dir)
	require.True(t, Init(it, dp, dp.Inum()))

	f1 := it.Ialloc(inode.File)
	require.True(t, Link(it, dp, "one", f1.Inum()))
	sizeAfterOne := dp.Size
	require.True(t, Unlink(it, dp, "one"))

	f2 := it.Ialloc(inode.File)
	require.True(t, Link(it, dp, "two", f2.Inum()))
	require.Equal(t, sizeAfterOne, dp.Size) // reused the freed slot, didn't grow

	it.Iunlockput(f1)
	it.Iunlockput(f2)
	it.Iunlockput(dp)
	log.EndOp()
}

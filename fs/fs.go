// Package fs ties the buffer cache, log, allocators and inode table
// into a mountable file system and implements the composite operations
// user-facing calls are built from: path resolution, create, link,
// unlink, mkdir, mknod, symlink and open.
package fs

import (
	"github.com/mit-pdos/go-sixfs/alloc"
	"github.com/mit-pdos/go-sixfs/bcache"
	"github.com/mit-pdos/go-sixfs/dir"
	"github.com/mit-pdos/go-sixfs/disk"
	"github.com/mit-pdos/go-sixfs/inode"
	"github.com/mit-pdos/go-sixfs/super"
	"github.com/mit-pdos/go-sixfs/wal"
)

// Fs is a mounted file system: every layer sharing one disk, one log
// and one inode cache.
type Fs struct {
	Disk   disk.Disk
	Bc     *bcache.Bcache
	Log    *wal.Log
	Sb     *super.Superblock
	Balloc *alloc.Alloc
	Ialloc *alloc.Alloc
	It     *inode.Itable
}

// Mkfs formats a fresh file system of size blocks with room for
// ninodes inodes onto d, and returns it mounted.
func Mkfs(d disk.Disk, size uint64, ninodes uint64) *Fs {
	sb := super.MkSuperblock(size, ninodes)
	bc := bcache.MkBcache(d)
	log := wal.MkLog(bc, sb.LogStart, sb.Nlog-1)
	log.Recover() // disk is freshly zeroed; this is a no-op

	balloc := alloc.MkAlloc(bc, log, sb.BmapStart, sb.Nblocks)
	ialloc := alloc.MkAlloc(bc, log, sb.IbmapStart, sb.Ninodes)
	env := &inode.Env{Bc: bc, Log: log, Sb: sb, Ialloc: ialloc, Balloc: balloc}
	it := inode.MkItable(env)

	b := bc.GetBuf(super.SuperBlock)
	copy(b.Data(), sb.Encode())
	b.SetDirty()
	bc.Write(b)
	bc.Release(b)

	log.BeginOp()
	null := it.Ialloc(inode.Free) // consumes inum 0, which Namei never resolves to
	it.Iunlockput(null)

	root := it.Ialloc(inode.Dir)
	if root.Inum() != inode.ROOTINUM {
		panic("fs: root directory did not get ROOTINUM")
	}
	root.Nlink = 2
	it.Iupdate(root)
	if !dir.Init(it, root, root.Inum()) {
		panic("fs: failed to initialize root directory")
	}
	it.Iunlockput(root)
	log.EndOp()

	bc.Barrier()
	return &Fs{Disk: d, Bc: bc, Log: log, Sb: sb, Balloc: balloc, Ialloc: ialloc, It: it}
}

// OpenFs mounts an already-formatted image: it reads the superblock,
// replays any committed-but-uninstalled transaction, and rebuilds the
// in-memory cache state fresh.
func OpenFs(d disk.Disk) *Fs {
	bootBc := bcache.MkBcache(d)
	b := bootBc.Read(super.SuperBlock)
	sb := super.Decode(b.Data())
	bootBc.Release(b)

	bc := bcache.MkBcache(d)
	log := wal.MkLog(bc, sb.LogStart, sb.Nlog-1)
	log.Recover()

	balloc := alloc.MkAlloc(bc, log, sb.BmapStart, sb.Nblocks)
	ialloc := alloc.MkAlloc(bc, log, sb.IbmapStart, sb.Ninodes)
	env := &inode.Env{Bc: bc, Log: log, Sb: sb, Ialloc: ialloc, Balloc: balloc}
	it := inode.MkItable(env)

	return &Fs{Disk: d, Bc: bc, Log: log, Sb: sb, Balloc: balloc, Ialloc: ialloc, It: it}
}

// Root returns a new reference to the root directory inode. The
// caller must Iput it when done.
func (fsys *Fs) Root() *inode.Inode {
	return fsys.It.Iget(inode.ROOTINUM)
}

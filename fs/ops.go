package fs

import (
	"github.com/mit-pdos/go-sixfs/dir"
	"github.com/mit-pdos/go-sixfs/inode"
)

// create resolves path's parent, then either links a freshly allocated
// inode of kind there, or, for kind File, returns an already-existing
// regular file or device (open-without-O_EXCL semantics). The returned inode is
// locked and ref'd; the caller must Iunlockput it.
func (fsys *Fs) create(cwd *inode.Inode, path string, kind inode.Type, major, minor uint32) (*inode.Inode, bool) {
	dp, name := fsys.NameiParent(cwd, path)
	if dp == nil {
		return nil, false
	}
	fsys.It.Ilock(dp)
	if dp.Type != inode.Dir {
		fsys.It.Iunlockput(dp)
		return nil, false
	}

	if inum, _, ok := dir.Lookup(fsys.It, dp, name); ok {
		fsys.It.Iunlock(dp)
		ip := fsys.It.Iget(inum)
		fsys.It.Ilock(ip)
		if kind == inode.File && (ip.Type == inode.File || ip.Type == inode.Dev) {
			fsys.It.Iput(dp)
			return ip, true
		}
		fsys.It.Iunlockput(ip)
		fsys.It.Iput(dp)
		return nil, false
	}

	ip := fsys.It.Ialloc(kind)
	if ip == nil {
		fsys.It.Iunlockput(dp)
		return nil, false
	}
	ip.Major = major
	ip.Minor = minor
	ip.Nlink = 1
	fsys.It.Iupdate(ip)

	if kind == inode.Dir {
		dp.Nlink++ // for the new directory's ".."
		fsys.It.Iupdate(dp)
		if !dir.Init(fsys.It, ip, dp.Inum()) {
			panic("fs: create: dir.Init failed")
		}
	}

	if !dir.Link(fsys.It, dp, name, ip.Inum()) {
		panic("fs: create: dir.Link failed")
	}

	fsys.It.Iunlockput(dp)
	return ip, true
}

// Create makes a new regular file at path, or opens it if it already
// exists, and returns it unlocked with a reference the caller must
// Iput.
func (fsys *Fs) Create(cwd *inode.Inode, path string) (*inode.Inode, bool) {
	fsys.Log.BeginOp()
	defer fsys.Log.EndOp()
	ip, ok := fsys.create(cwd, path, inode.File, 0, 0)
	if !ok {
		return nil, false
	}
	fsys.It.Iunlock(ip)
	return ip, true
}

// Mkdir creates a new directory at path, with "." and ".." already
// linked.
func (fsys *Fs) Mkdir(cwd *inode.Inode, path string) bool {
	fsys.Log.BeginOp()
	defer fsys.Log.EndOp()
	ip, ok := fsys.create(cwd, path, inode.Dir, 0, 0)
	if !ok {
		return false
	}
	fsys.It.Iunlockput(ip)
	return true
}

// Mknod creates a device special file at path with the given major and
// minor numbers.
func (fsys *Fs) Mknod(cwd *inode.Inode, path string, major, minor uint32) bool {
	fsys.Log.BeginOp()
	defer fsys.Log.EndOp()
	ip, ok := fsys.create(cwd, path, inode.Dev, major, minor)
	if !ok {
		return false
	}
	fsys.It.Iunlockput(ip)
	return true
}

// Symlink creates a symbolic link at path whose content is target. The
// target is stored verbatim and is not checked for existence.
func (fsys *Fs) Symlink(cwd *inode.Inode, path, target string) bool {
	fsys.Log.BeginOp()
	defer fsys.Log.EndOp()
	ip, ok := fsys.create(cwd, path, inode.Sym, 0, 0)
	if !ok {
		return false
	}
	n := fsys.It.Writei(ip, 0, []byte(target))
	fsys.It.Iunlockput(ip)
	return n == uint64(len(target))
}

// Link adds a new name, newpath, for the inode already named oldpath.
// It fails if oldpath names a directory.
func (fsys *Fs) Link(cwd *inode.Inode, oldpath, newpath string) bool {
	fsys.Log.BeginOp()
	defer fsys.Log.EndOp()

	ip := fsys.Namei(cwd, oldpath)
	if ip == nil {
		return false
	}
	fsys.It.Ilock(ip)
	if ip.Type == inode.Dir {
		fsys.It.Iunlockput(ip)
		return false
	}
	ip.Nlink++
	fsys.It.Iupdate(ip)
	fsys.It.Iunlock(ip)

	dp, name := fsys.NameiParent(cwd, newpath)
	linked := false
	if dp != nil {
		fsys.It.Ilock(dp)
		if dp.Type == inode.Dir {
			linked = dir.Link(fsys.It, dp, name, ip.Inum())
		}
		fsys.It.Iunlockput(dp)
	}
	if !linked {
		fsys.It.Ilock(ip)
		ip.Nlink--
		fsys.It.Iupdate(ip)
		fsys.It.Iunlockput(ip)
		return false
	}
	fsys.It.Iput(ip)
	return true
}

// Unlink removes path's directory entry, decrementing the target
// inode's link count. It refuses to unlink "." or ".." or a
// non-empty directory.
func (fsys *Fs) Unlink(cwd *inode.Inode, path string) bool {
	fsys.Log.BeginOp()
	defer fsys.Log.EndOp()

	dp, name := fsys.NameiParent(cwd, path)
	if dp == nil {
		return false
	}
	fsys.It.Ilock(dp)

	if name == "." || name == ".." {
		fsys.It.Iunlockput(dp)
		return false
	}

	inum, _, ok := dir.Lookup(fsys.It, dp, name)
	if !ok {
		fsys.It.Iunlockput(dp)
		return false
	}

	ip := fsys.It.Iget(inum)
	fsys.It.Ilock(ip)

	if ip.Nlink < 1 {
		panic("fs: Unlink: inode with nlink < 1")
	}
	if ip.Type == inode.Dir && !dir.IsEmpty(fsys.It, ip) {
		fsys.It.Iunlockput(ip)
		fsys.It.Iunlockput(dp)
		return false
	}

	if !dir.Unlink(fsys.It, dp, name) {
		panic("fs: Unlink: dir.Unlink failed")
	}
	if ip.Type == inode.Dir {
		dp.Nlink--
		fsys.It.Iupdate(dp)
	}
	fsys.It.Iunlockput(dp)

	ip.DecLink()
	fsys.It.Iupdate(ip)
	fsys.It.Iunlockput(ip)
	return true
}

// Open resolves path, optionally creating it, and optionally
// truncating an existing regular file to zero length. With noFollow
// set, a symlink at path is returned unresolved instead of being
// chased (O_NOFOLLOW); noFollow is ignored when createFlag is set,
// since create always makes a regular file. It fails to open a
// directory for truncation, and returns the resolved inode unlocked
// with a reference the caller must Iput.
func (fsys *Fs) Open(cwd *inode.Inode, path string, createFlag, truncFlag, noFollow bool) (*inode.Inode, bool) {
	fsys.Log.BeginOp()
	defer fsys.Log.EndOp()

	var ip *inode.Inode
	if createFlag {
		var ok bool
		ip, ok = fsys.create(cwd, path, inode.File, 0, 0)
		if !ok {
			return nil, false
		}
	} else {
		if noFollow {
			ip = fsys.NameiNoFollow(cwd, path)
		} else {
			ip = fsys.Namei(cwd, path)
		}
		if ip == nil {
			return nil, false
		}
		fsys.It.Ilock(ip)
		if ip.Type == inode.Dir && truncFlag {
			fsys.It.Iunlockput(ip)
			return nil, false
		}
	}

	if truncFlag && ip.Type == inode.File {
		fsys.It.Itrunc(ip)
	}

	fsys.It.Iunlock(ip)
	return ip, true
}

// Stat resolves path and returns its metadata.
func (fsys *Fs) Stat(cwd *inode.Inode, path string) (inode.Stat, bool) {
	fsys.Log.BeginOp()
	defer fsys.Log.EndOp()

	ip := fsys.Namei(cwd, path)
	if ip == nil {
		return inode.Stat{}, false
	}
	fsys.It.Ilock(ip)
	st := inode.Stati(ip)
	fsys.It.Iunlockput(ip)
	return st, true
}

// Chdir resolves path to a directory inode, for the caller to use as
// its working directory in later calls. Fails if path does not name a
// directory.
func (fsys *Fs) Chdir(cwd *inode.Inode, path string) (*inode.Inode, bool) {
	fsys.Log.BeginOp()
	defer fsys.Log.EndOp()

	ip := fsys.Namei(cwd, path)
	if ip == nil {
		return nil, false
	}
	fsys.It.Ilock(ip)
	if ip.Type != inode.Dir {
		fsys.It.Iunlockput(ip)
		return nil, false
	}
	fsys.It.Iunlock(ip)
	return ip, true
}

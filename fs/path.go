package fs

import (
	"strings"

	"github.com/mit-pdos/go-sixfs/dir"
	"github.com/mit-pdos/go-sixfs/inode"
)

// maxSymlinkHops bounds how many symlinks a single path resolution may
// chase before giving up, so a cycle of symlinks can't hang a lookup.
// It is charged across the whole resolution, not per call, so a path
// that keeps bouncing through different symlinks still terminates.
const maxSymlinkHops = 10

// skipelem splits the next path element off path, ignoring any run of
// leading slashes.
func skipelem(path string) (elem string, rest string) {
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return "", ""
	}
	i := strings.IndexByte(path, '/')
	if i < 0 {
		return path, ""
	}
	return path[:i], strings.TrimLeft(path[i:], "/")
}

// namex walks path one element at a time starting from cwd (or from
// root, if path is absolute). With wantParent set it stops one element
// short and returns the parent directory, unlocked, plus the final
// element's name; otherwise it returns the resolved inode itself,
// following a trailing symlink unless followLast is false. hops counts
// symlinks chased so far across the whole resolution.
func (fsys *Fs) namex(cwd *inode.Inode, path string, wantParent bool, followLast bool, hops *int) (*inode.Inode, string) {
	var dp *inode.Inode
	if strings.HasPrefix(path, "/") {
		dp = fsys.It.Iget(inode.ROOTINUM)
	} else {
		dp = fsys.It.Iget(cwd.Inum())
	}

	for {
		elem, rest := skipelem(path)
		if elem == "" {
			if wantParent {
				fsys.It.Iput(dp)
				return nil, ""
			}
			return dp, ""
		}

		fsys.It.Ilock(dp)
		if dp.Type != inode.Dir {
			fsys.It.Iunlockput(dp)
			return nil, ""
		}
		if wantParent && rest == "" {
			fsys.It.Iunlock(dp)
			return dp, elem
		}

		inum, _, ok := dir.Lookup(fsys.It, dp, elem)
		fsys.It.Iunlockput(dp)
		if !ok {
			return nil, ""
		}

		next := fsys.It.Iget(inum)
		isLast := rest == ""
		if !isLast || followLast {
			resolved, ok := fsys.followSymlink(cwd, next, hops)
			if !ok {
				return nil, ""
			}
			next = resolved
		}
		dp = next
		path = rest
	}
}

// followSymlink locks ip; if it names a symlink, it reads the target
// and re-resolves it starting over from cwd (matching the underlying
// kernel, a relative target is always relative to the caller's
// directory, never to the symlink's own parent), looping until it
// reaches a non-symlink or hops exceeds maxSymlinkHops. Returns the
// final inode unlocked, with its own reference.
func (fsys *Fs) followSymlink(cwd *inode.Inode, ip *inode.Inode, hops *int) (*inode.Inode, bool) {
	for {
		fsys.It.Ilock(ip)
		if ip.Type != inode.Sym {
			fsys.It.Iunlock(ip)
			return ip, true
		}
		if *hops >= maxSymlinkHops {
			fsys.It.Iunlockput(ip)
			return nil, false
		}
		*hops++
		target := string(fsys.It.Readi(ip, 0, ip.Size))
		fsys.It.Iunlockput(ip)

		next, _ := fsys.namex(cwd, target, false, true, hops)
		if next == nil {
			return nil, false
		}
		ip = next
	}
}

// Namei resolves path to its inode, following a trailing symlink.
func (fsys *Fs) Namei(cwd *inode.Inode, path string) *inode.Inode {
	hops := 0
	ip, _ := fsys.namex(cwd, path, false, true, &hops)
	return ip
}

// NameiNoFollow resolves path to its inode without following a
// trailing symlink, for callers that want the link itself.
func (fsys *Fs) NameiNoFollow(cwd *inode.Inode, path string) *inode.Inode {
	hops := 0
	ip, _ := fsys.namex(cwd, path, false, false, &hops)
	return ip
}

// NameiParent resolves path up to, but not including, its final
// element, returning the parent directory and that element's name.
func (fsys *Fs) NameiParent(cwd *inode.Inode, path string) (*inode.Inode, string) {
	hops := 0
	return fsys.namex(cwd, path, true, true, &hops)
}

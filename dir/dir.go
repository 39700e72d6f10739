// Package dir implements directories as a sequence of fixed-size
// directory entries stored in a regular inode's data, matching the
// original 16-byte dirent format: a 2-byte inode number followed by a
// 14-byte name, NUL-padded but not required to be NUL-terminated if it
// fills all 14 bytes.
package dir

import (
	"github.com/mit-pdos/go-sixfs/inode"
)

const DIRSIZ = 14
const EntSize = 2 + DIRSIZ

type dirent struct {
	inum uint64 // stored on disk as 2 bytes
	name string
}

func encode(de dirent) []byte {
	b := make([]byte, EntSize)
	b[0] = byte(de.inum)
	b[1] = byte(de.inum >> 8)
	copy(b[2:], []byte(de.name))
	return b
}

func decode(b []byte) dirent {
	inum := uint64(b[0]) | uint64(b[1])<<8
	raw := b[2 : 2+DIRSIZ]
	n := DIRSIZ
	for i, c := range raw {
		if c == 0 {
			n = i
			break
		}
	}
	return dirent{inum: inum, name: string(raw[:n])}
}

func IllegalName(name string) bool {
	return name == "" || len(name) > DIRSIZ
}

// Lookup scans dp's entries for name, returning the matching inode
// number and the byte offset of its directory entry, or (0, 0, false).
func Lookup(it *inode.Itable, dp *inode.Inode, name string) (uint64, uint64, bool) {
	if dp.Type != inode.Dir {
		panic("dir: Lookup on non-directory")
	}
	for off := uint64(0); off < dp.Size; off += EntSize {
		data := it.Readi(dp, off, EntSize)
		if uint64(len(data)) != EntSize {
			break
		}
		de := decode(data)
		if de.inum != inode.NULLINUM && de.name == name {
			return de.inum, off, true
		}
	}
	return 0, 0, false
}

// Link adds name -> inum to dp, reusing a free slot if one exists.
// Returns false if name is already present, illegal, or dp has no
// room to grow.
func Link(it *inode.Itable, dp *inode.Inode, name string, inum uint64) bool {
	if IllegalName(name) {
		return false
	}
	if _, _, ok := Lookup(it, dp, name); ok {
		return false
	}

	var writeOff uint64 = dp.Size
	for off := uint64(0); off < dp.Size; off += EntSize {
		data := it.Readi(dp, off, EntSize)
		de := decode(data)
		if de.inum == inode.NULLINUM {
			writeOff = off
			break
		}
	}

	ent := encode(dirent{inum: inum, name: name})
	n := it.Writei(dp, writeOff, ent)
	return n == EntSize
}

// Unlink removes name from dp by zeroing its entry in place.
func Unlink(it *inode.Itable, dp *inode.Inode, name string) bool {
	_, off, ok := Lookup(it, dp, name)
	if !ok {
		return false
	}
	ent := encode(dirent{inum: inode.NULLINUM, name: ""})
	n := it.Writei(dp, off, ent)
	return n == EntSize
}

// IsEmpty reports whether dp has no entries besides "." and "..".
func IsEmpty(it *inode.Itable, dp *inode.Inode) bool {
	for off := uint64(2 * EntSize); off < dp.Size; off += EntSize {
		data := it.Readi(dp, off, EntSize)
		de := decode(data)
		if de.inum != inode.NULLINUM {
			return false
		}
	}
	return true
}

// Init writes "." and ".." into a freshly allocated directory dp whose
// parent is parent (parent == dp.Inum() for the root directory).
func Init(it *inode.Itable, dp *inode.Inode, parent uint64) bool {
	if !Link(it, dp, ".", dp.Inum()) {
		return false
	}
	return Link(it, dp, "..", parent)
}

// Package inode implements the on-disk inode format and the in-memory
// inode cache: direct, single-indirect and double-indirect block maps,
// and the two-tier locking xv6 uses (a table lock covering only
// ref/valid/inum, plus each inode's own sleep-lock over its cached
// body).
package inode

import (
	"fmt"
	"sync"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-sixfs/alloc"
	"github.com/mit-pdos/go-sixfs/bcache"
	"github.com/mit-pdos/go-sixfs/disk"
	"github.com/mit-pdos/go-sixfs/super"
	"github.com/mit-pdos/go-sixfs/util"
	"github.com/mit-pdos/go-sixfs/wal"
)

type Type uint32

const (
	Free Type = 0
	File Type = 1
	Dir  Type = 2
	Dev  Type = 3
	Sym  Type = 4
)

const NDIRECT uint64 = 11
const NINDIRECT uint64 = disk.BlockSize / 4
const MAXFILE = NDIRECT + NINDIRECT + NINDIRECT*NINDIRECT

const NInum = NDIRECT + 2 // addrs slots: NDIRECT direct + 1 indirect + 1 double-indirect

const NULLINUM uint64 = 0
const ROOTINUM uint64 = 1

const NINODE = 64 // fixed size of the in-memory inode cache

// Env bundles the lower layers an Itable needs to read and write
// inodes as part of a transaction.
type Env struct {
	Bc     *bcache.Bcache
	Log    *wal.Log
	Sb     *super.Superblock
	Ialloc *alloc.Alloc
	Balloc *alloc.Alloc
}

// Inode is one cache slot: ref, valid and inum are guarded by the
// owning Itable's lock; everything else is guarded by mu, the
// inode's own sleep-lock, which may be held across a disk read.
type Inode struct {
	table *Itable
	mu    sync.Mutex

	inum  uint64
	ref   uint32
	valid bool // has the on-disk body been read into the fields below?

	Type  Type
	Major uint32
	Minor uint32
	Nlink uint32
	Size  uint64
	addrs [NInum]uint64
}

func (ip *Inode) Inum() uint64 {
	return ip.inum
}

func (ip *Inode) String() string {
	return fmt.Sprintf("inode#%d type=%d nlink=%d size=%d", ip.inum, ip.Type, ip.Nlink, ip.Size)
}

// Stat is the subset of an inode's metadata callers outside this
// package are allowed to see.
type Stat struct {
	Inum  uint64
	Type  Type
	Nlink uint32
	Size  uint64
	Major uint32
	Minor uint32
}

// Stati copies ip's metadata into a Stat. ip must already be locked.
func Stati(ip *Inode) Stat {
	return Stat{
		Inum:  ip.inum,
		Type:  ip.Type,
		Nlink: ip.Nlink,
		Size:  ip.Size,
		Major: ip.Major,
		Minor: ip.Minor,
	}
}

type Itable struct {
	env  *Env
	mu   sync.Mutex
	slot [NINODE]*Inode
}

func MkItable(env *Env) *Itable {
	it := &Itable{env: env}
	for i := range it.slot {
		it.slot[i] = &Inode{}
	}
	return it
}

// Iget finds or creates the cache slot for inum and bumps its
// reference count. It does not read the inode's body from disk or
// lock it; call Ilock for that.
func (it *Itable) Iget(inum uint64) *Inode {
	it.mu.Lock()
	defer it.mu.Unlock()

	var empty *Inode
	for _, ip := range it.slot {
		if ip.ref > 0 && ip.inum == inum {
			ip.ref++
			return ip
		}
		if empty == nil && ip.ref == 0 {
			empty = ip
		}
	}
	if empty == nil {
		panic("inode: cache exhausted")
	}
	empty.table = it
	empty.inum = inum
	empty.ref = 1
	empty.valid = false
	return empty
}

func inodeAddr(sb *super.Superblock, inum uint64) (blockno uint64, byteOff uint64) {
	perBlock := sb.NInodesPerBlock()
	blockno = sb.InodeStart + inum/perBlock
	byteOff = (inum % perBlock) * super.INODESZ
	return
}

// Ilock locks ip's body, reading it from disk the first time.
func (it *Itable) Ilock(ip *Inode) {
	ip.mu.Lock()
	if !ip.valid {
		blockno, byteOff := inodeAddr(it.env.Sb, ip.inum)
		b := it.env.Bc.Read(blockno)
		decodeInto(ip, b.Data()[byteOff:byteOff+super.INODESZ])
		it.env.Bc.Release(b)
		ip.valid = true
		if ip.Type == Free {
			panic("inode: Ilock of free inode")
		}
	}
}

func (it *Itable) Iunlock(ip *Inode) {
	ip.mu.Unlock()
}

// Iput drops a reference. If this was the last reference to an inode
// with no links left, it truncates and frees the inode on disk.
func (it *Itable) Iput(ip *Inode) {
	it.mu.Lock()
	if ip.ref == 1 && ip.valid && ip.Nlink == 0 {
		ip.mu.Lock()
		it.mu.Unlock()

		it.Itrunc(ip)
		ip.Type = Free
		it.Iupdate(ip)
		it.env.Ialloc.FreeNum(ip.inum)
		ip.valid = false

		ip.mu.Unlock()
		it.mu.Lock()
	}
	ip.ref--
	it.mu.Unlock()
}

func (it *Itable) Iunlockput(ip *Inode) {
	it.Iunlock(ip)
	it.Iput(ip)
}

// Ialloc claims a free inode number from the inode bitmap and
// initializes it as kind.
func (it *Itable) Ialloc(kind Type) *Inode {
	num, ok := it.env.Ialloc.AllocNum()
	if !ok {
		return nil
	}
	ip := it.Iget(num)
	// The on-disk slot is all zeros (type Free) until Iupdate below
	// writes it, so this locks and initializes directly rather than
	// going through Ilock, which would read that zeroed content and
	// panic on an apparently-free type.
	ip.mu.Lock()
	ip.valid = true
	ip.Type = kind
	ip.Major = 0
	ip.Minor = 0
	ip.Nlink = 1
	ip.Size = 0
	for i := range ip.addrs {
		ip.addrs[i] = 0
	}
	it.Iupdate(ip)
	util.DPrintf(1, "Ialloc: %v\n", ip)
	return ip
}

// Iupdate writes ip's cached body back to its disk inode block.
func (it *Itable) Iupdate(ip *Inode) {
	blockno, byteOff := inodeAddr(it.env.Sb, ip.inum)
	b := it.env.Bc.Read(blockno)
	copy(b.Data()[byteOff:byteOff+super.INODESZ], encode(ip))
	b.SetDirty()
	it.env.Log.LogWrite(b)
	it.env.Bc.Release(b)
}

func encode(ip *Inode) []byte {
	enc := marshal.NewEnc(super.INODESZ)
	enc.PutInt32(uint32(ip.Type))
	enc.PutInt32(ip.Major)
	enc.PutInt32(ip.Minor)
	enc.PutInt32(ip.Nlink)
	enc.PutInt(ip.Size)
	for _, a := range ip.addrs {
		enc.PutInt(a)
	}
	return enc.Finish()
}

func decodeInto(ip *Inode, b []byte) {
	dec := marshal.NewDec(b)
	ip.Type = Type(dec.GetInt32())
	ip.Major = dec.GetInt32()
	ip.Minor = dec.GetInt32()
	ip.Nlink = dec.GetInt32()
	ip.Size = dec.GetInt()
	for i := range ip.addrs {
		ip.addrs[i] = dec.GetInt()
	}
}

// indirectGet/indirectSet manage one block of up to NINDIRECT 4-byte
// block numbers, matching the original on-disk indirect block format.
func indirectGet(it *Itable, blockno uint64, idx uint64) (*bcache.Buf, uint64) {
	b := it.env.Bc.Read(blockno)
	dec := marshal.NewDec(b.Data()[idx*4 : idx*4+4])
	return b, uint64(dec.GetInt32())
}

func indirectSet(it *Itable, b *bcache.Buf, idx uint64, addr uint64) {
	enc := marshal.NewEnc(4)
	enc.PutInt32(uint32(addr))
	copy(b.Data()[idx*4:idx*4+4], enc.Finish())
	b.SetDirty()
	it.env.Log.LogWrite(b)
}

// bmap maps a logical block number to a physical one, allocating
// direct, indirect or double-indirect blocks along the way as needed.
// Returns 0 if an allocation failed partway through.
func (it *Itable) bmap(ip *Inode, bn uint64) uint64 {
	if bn < NDIRECT {
		addr := ip.addrs[bn]
		if addr == 0 {
			addr, ok := alloc.AllocBlock(it.env.Balloc, it.env.Sb.DataStart)
			if !ok {
				return 0
			}
			ip.addrs[bn] = addr
			return addr
		}
		return addr
	}
	bn -= NDIRECT

	if bn < NINDIRECT {
		root := ip.addrs[NDIRECT]
		if root == 0 {
			r, ok := alloc.AllocBlock(it.env.Balloc, it.env.Sb.DataStart)
			if !ok {
				return 0
			}
			root = r
			ip.addrs[NDIRECT] = root
		}
		b, addr := indirectGet(it, root, bn)
		if addr == 0 {
			a, ok := alloc.AllocBlock(it.env.Balloc, it.env.Sb.DataStart)
			if ok {
				indirectSet(it, b, bn, a)
				addr = a
			}
		}
		it.env.Bc.Release(b)
		return addr
	}
	bn -= NINDIRECT

	if bn < NINDIRECT*NINDIRECT {
		root := ip.addrs[NDIRECT+1]
		if root == 0 {
			r, ok := alloc.AllocBlock(it.env.Balloc, it.env.Sb.DataStart)
			if !ok {
				return 0
			}
			root = r
			ip.addrs[NDIRECT+1] = root
		}
		idx1 := bn / NINDIRECT
		b1, mid := indirectGet(it, root, idx1)
		if mid == 0 {
			a, ok := alloc.AllocBlock(it.env.Balloc, it.env.Sb.DataStart)
			if ok {
				indirectSet(it, b1, idx1, a)
				mid = a
			}
		}
		it.env.Bc.Release(b1)
		if mid == 0 {
			return 0
		}
		idx2 := bn % NINDIRECT
		b2, addr := indirectGet(it, mid, idx2)
		if addr == 0 {
			a, ok := alloc.AllocBlock(it.env.Balloc, it.env.Sb.DataStart)
			if ok {
				indirectSet(it, b2, idx2, a)
				addr = a
			}
		}
		it.env.Bc.Release(b2)
		return addr
	}

	panic("inode: bmap out of range")
}

// Itrunc frees every block ip owns and resets its size to 0.
func (it *Itable) Itrunc(ip *Inode) {
	for i := uint64(0); i < NDIRECT; i++ {
		if ip.addrs[i] != 0 {
			alloc.FreeBlock(it.env.Balloc, it.env.Sb.DataStart, ip.addrs[i])
			ip.addrs[i] = 0
		}
	}
	if ip.addrs[NDIRECT] != 0 {
		b := it.env.Bc.Read(ip.addrs[NDIRECT])
		for j := uint64(0); j < NINDIRECT; j++ {
			dec := marshal.NewDec(b.Data()[j*4 : j*4+4])
			a := uint64(dec.GetInt32())
			if a != 0 {
				alloc.FreeBlock(it.env.Balloc, it.env.Sb.DataStart, a)
			}
		}
		it.env.Bc.Release(b)
		alloc.FreeBlock(it.env.Balloc, it.env.Sb.DataStart, ip.addrs[NDIRECT])
		ip.addrs[NDIRECT] = 0
	}
	if ip.addrs[NDIRECT+1] != 0 {
		b := it.env.Bc.Read(ip.addrs[NDIRECT+1])
		for i := uint64(0); i < NINDIRECT; i++ {
			dec := marshal.NewDec(b.Data()[i*4 : i*4+4])
			mid := uint64(dec.GetInt32())
			if mid != 0 {
				b2 := it.env.Bc.Read(mid)
				for j := uint64(0); j < NINDIRECT; j++ {
					dec2 := marshal.NewDec(b2.Data()[j*4 : j*4+4])
					a := uint64(dec2.GetInt32())
					if a != 0 {
						alloc.FreeBlock(it.env.Balloc, it.env.Sb.DataStart, a)
					}
				}
				it.env.Bc.Release(b2)
				alloc.FreeBlock(it.env.Balloc, it.env.Sb.DataStart, mid)
			}
		}
		it.env.Bc.Release(b)
		alloc.FreeBlock(it.env.Balloc, it.env.Sb.DataStart, ip.addrs[NDIRECT+1])
		ip.addrs[NDIRECT+1] = 0
	}
	ip.Size = 0
	it.Iupdate(ip)
}

// Readi reads up to n bytes starting at off, stopping short of n if
// off+n exceeds ip.Size or a block could not be mapped.
func (it *Itable) Readi(ip *Inode, off uint64, n uint64) []byte {
	if off > ip.Size {
		return nil
	}
	if off+n > ip.Size {
		n = ip.Size - off
	}
	data := make([]byte, 0, n)
	for tot := uint64(0); tot < n; {
		addr := it.bmap(ip, off/disk.BlockSize)
		if addr == 0 {
			break
		}
		b := it.env.Bc.Read(addr)
		boff := off % disk.BlockSize
		m := util.Min(n-tot, disk.BlockSize-boff)
		data = append(data, b.Data()[boff:boff+m]...)
		it.env.Bc.Release(b)
		tot += m
		off += m
	}
	return data
}

// Writei writes src at off, growing ip.Size as needed, and stops short
// if a block could not be allocated.
func (it *Itable) Writei(ip *Inode, off uint64, src []byte) uint64 {
	n := uint64(len(src))
	if off > ip.Size || off+n < off || off+n > MAXFILE*disk.BlockSize {
		return 0
	}
	var tot uint64
	for tot < n {
		addr := it.bmap(ip, off/disk.BlockSize)
		if addr == 0 {
			break
		}
		b := it.env.Bc.Read(addr)
		boff := off % disk.BlockSize
		m := util.Min(n-tot, disk.BlockSize-boff)
		copy(b.Data()[boff:boff+m], src[tot:tot+m])
		b.SetDirty()
		it.env.Log.LogWrite(b)
		it.env.Bc.Release(b)
		tot += m
		off += m
	}
	if off > ip.Size {
		ip.Size = off
	}
	it.Iupdate(ip)
	return tot
}

func (ip *Inode) DecLink() {
	ip.Nlink--
}

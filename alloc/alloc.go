// Package alloc implements the free bitmap allocator shared by the
// data-block bitmap and the inode bitmap: scan a run of bitmap blocks
// a bit at a time for a free slot, and mark or clear bits through the
// log so allocation is part of the caller's transaction.
package alloc

import (
	"github.com/mit-pdos/go-sixfs/bcache"
	"github.com/mit-pdos/go-sixfs/disk"
	"github.com/mit-pdos/go-sixfs/wal"
)

// Alloc tracks nbits free/used bits starting at bit 0, stored
// big-block-at-a-time starting at disk block `start`.
type Alloc struct {
	bc    *bcache.Bcache
	log   *wal.Log
	start uint64
	nbits uint64
}

func MkAlloc(bc *bcache.Bcache, log *wal.Log, start uint64, nbits uint64) *Alloc {
	return &Alloc{bc: bc, log: log, start: start, nbits: nbits}
}

func (a *Alloc) blockAndBit(num uint64) (blockno uint64, byteOff uint64, bit uint) {
	blockno = a.start + num/(disk.BlockSize*8)
	within := num % (disk.BlockSize * 8)
	byteOff = within / 8
	bit = uint(within % 8)
	return
}

// AllocNum finds the lowest-numbered free bit, marks it used, and
// returns it. Returns ok=false if every bit is in use.
func (a *Alloc) AllocNum() (uint64, bool) {
	for num := uint64(0); num < a.nbits; num++ {
		blockno, byteOff, bit := a.blockAndBit(num)
		b := a.bc.Read(blockno)
		if b.Data()[byteOff]&(1<<bit) == 0 {
			b.Data()[byteOff] |= 1 << bit
			b.SetDirty()
			a.log.LogWrite(b)
			a.bc.Release(b)
			return num, true
		}
		a.bc.Release(b)
	}
	return 0, false
}

// FreeNum clears num's bit. Panics if it was already free, matching
// the underlying kernel's bfree.
func (a *Alloc) FreeNum(num uint64) {
	blockno, byteOff, bit := a.blockAndBit(num)
	b := a.bc.Read(blockno)
	if b.Data()[byteOff]&(1<<bit) == 0 {
		a.bc.Release(b)
		panic("alloc: freeing already-free bit")
	}
	b.Data()[byteOff] &^= 1 << bit
	b.SetDirty()
	a.log.LogWrite(b)
	a.bc.Release(b)
}

// AllocBlock allocates a free data block, zeroes its content, and
// returns its absolute block number (base + the bit index).
func AllocBlock(a *Alloc, base uint64) (uint64, bool) {
	num, ok := a.AllocNum()
	if !ok {
		return 0, false
	}
	blockno := base + num
	zb := a.bc.GetBuf(blockno)
	for i := range zb.Data() {
		zb.Data()[i] = 0
	}
	zb.SetDirty()
	a.log.LogWrite(zb)
	a.bc.Release(zb)
	return blockno, true
}

func FreeBlock(a *Alloc, base uint64, blockno uint64) {
	a.FreeNum(blockno - base)
}

// Used scans the whole bitmap and reports how many of its nbits bits
// are set.
func (a *Alloc) Used() (used uint64, total uint64) {
	for num := uint64(0); num < a.nbits; num++ {
		blockno, byteOff, bit := a.blockAndBit(num)
		b := a.bc.Read(blockno)
		if b.Data()[byteOff]&(1<<bit) != 0 {
			used++
		}
		a.bc.Release(b)
	}
	return used, a.nbits
}

// Package super defines the on-disk superblock and the fixed layout it
// describes: [boot | super | log | inode blocks | block bitmap | inode
// bitmap | data blocks].
package super

import (
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-sixfs/disk"
	"github.com/mit-pdos/go-sixfs/wal"
)

const Magic uint32 = 0x10203040

const INODESZ uint64 = 128     // on-disk dinode size in bytes
const NBITBLOCK uint64 = disk.BlockSize * 8
const BootBlock uint64 = 0
const SuperBlock uint64 = 1

// Superblock is the decoded contents of block 1.
type Superblock struct {
	Magic      uint32
	Size       uint64 // total blocks in the image
	Nblocks    uint64 // data blocks
	Ninodes    uint64
	Nlog       uint64 // log blocks, header included
	LogStart   uint64
	InodeStart uint64
	BmapStart  uint64 // block bitmap start
	IbmapStart uint64 // inode bitmap start
	DataStart  uint64
}

// MkSuperblock lays out a fresh file system of sz blocks with room for
// ninodes inodes.
func MkSuperblock(sz uint64, ninodes uint64) *Superblock {
	nlog := wal.LogSize() + 1
	inodeBlocks := (ninodes*INODESZ + disk.BlockSize - 1) / disk.BlockSize
	nBlockBitmap := sz/NBITBLOCK + 1
	nInodeBitmap := uint64(1)

	logStart := SuperBlock + 1
	inodeStart := logStart + nlog
	bmapStart := inodeStart + inodeBlocks
	ibmapStart := bmapStart + nBlockBitmap
	dataStart := ibmapStart + nInodeBitmap

	return &Superblock{
		Magic:      Magic,
		Size:       sz,
		Nblocks:    sz - dataStart,
		Ninodes:    ninodes,
		Nlog:       nlog,
		LogStart:   logStart,
		InodeStart: inodeStart,
		BmapStart:  bmapStart,
		IbmapStart: ibmapStart,
		DataStart:  dataStart,
	}
}

func (sb *Superblock) InodeBlocks() uint64 {
	return sb.BmapStart - sb.InodeStart
}

func (sb *Superblock) NInodesPerBlock() uint64 {
	return disk.BlockSize / INODESZ
}

func (sb *Superblock) Encode() []byte {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt32(sb.Magic)
	enc.PutInt(sb.Size)
	enc.PutInt(sb.Nblocks)
	enc.PutInt(sb.Ninodes)
	enc.PutInt(sb.Nlog)
	enc.PutInt(sb.LogStart)
	enc.PutInt(sb.InodeStart)
	enc.PutInt(sb.BmapStart)
	enc.PutInt(sb.IbmapStart)
	enc.PutInt(sb.DataStart)
	return enc.Finish()
}

func Decode(b []byte) *Superblock {
	dec := marshal.NewDec(b)
	sb := &Superblock{}
	sb.Magic = dec.GetInt32()
	sb.Size = dec.GetInt()
	sb.Nblocks = dec.GetInt()
	sb.Ninodes = dec.GetInt()
	sb.Nlog = dec.GetInt()
	sb.LogStart = dec.GetInt()
	sb.InodeStart = dec.GetInt()
	sb.BmapStart = dec.GetInt()
	sb.IbmapStart = dec.GetInt()
	sb.DataStart = dec.GetInt()
	if sb.Magic != Magic {
		panic("super: bad magic")
	}
	return sb
}

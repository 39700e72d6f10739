package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/go-sixfs/bcache"
	"github.com/mit-pdos/go-sixfs/disk"
	"github.com/mit-pdos/go-sixfs/wal"
)

const logStart = 2
const logSize = 20
const bitmapStart = logStart + 1 + logSize
const dataStart = bitmapStart + 1

func mkTestAlloc(t *testing.T, nbits uint64) (*bcache.Bcache, *wal.Log, *Alloc) {
	d := disk.NewMemDisk(dataStart + nbits + 10)
	bc := bcache.MkBcache(d)
	log := wal.MkLog(bc, logStart, logSize)
	log.Recover()
	a := MkAlloc(bc, log, bitmapStart, nbits)
	return bc, log, a
}

func TestAllocFreeRoundtrip(t *testing.T) {
	_, log, a := mkTestAlloc(t, 64)

	log.BeginOp()
	n1, ok := a.AllocNum()
	require.True(t, ok)
	require.Equal(t, uint64(0), n1)
	n2, ok := a.AllocNum()
	require.True(t, ok)
	require.Equal(t, uint64(1), n2)
	log.EndOp()

	log.BeginOp()
	a.FreeNum(n1)
	log.EndOp()

	log.BeginOp()
	n3, ok := a.AllocNum()
	require.True(t, ok)
	require.Equal(t, n1, n3) // reused the freed bit first
	log.EndOp()
}

func TestExhaustion(t *testing.T) {
	_, log, a := mkTestAlloc(t, 4)
	log.BeginOp()
	for i := 0; i < 4; i++ {
		_, ok := a.AllocNum()
		require.True(t, ok)
	}
	_, ok := a.AllocNum()
	require.False(t, ok)
	log.EndOp()
}

func TestFreeingFreeBitPanics(t *testing.T) {
	_, log, a := mkTestAlloc(t, 8)
	log.BeginOp()
	defer log.EndOp()
	require.Panics(t, func() { a.FreeNum(0) })
}

func TestAllocBlockZeroesContent(t *testing.T) {
	bc, log, a := mkTestAlloc(t, 64)
	log.BeginOp()
	blkno, ok := AllocBlock(a, dataStart)
	require.True(t, ok)
	b := bc.Read(blkno)
	for _, v := range b.Data() {
		require.Equal(t, byte(0), v)
	}
	bc.Release(b)
	log.EndOp()
}

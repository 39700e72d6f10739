package wal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/go-sixfs/bcache"
	"github.com/mit-pdos/go-sixfs/disk"
)

const testLogStart = 2
const testLogSize = 20
const testDataStart = testLogStart + 1 + testLogSize

func mkTestLog(t *testing.T) (*bcache.Bcache, *Log) {
	d := disk.NewMemDisk(testDataStart + 20)
	bc := bcache.MkBcache(d)
	l := MkLog(bc, testLogStart, testLogSize)
	l.Recover()
	return bc, l
}

func TestCommitInstallsToHomeBlock(t *testing.T) {
	bc, l := mkTestLog(t)

	l.BeginOp()
	b := bc.GetBuf(testDataStart)
	copy(b.Data(), []byte("persisted"))
	b.SetDirty()
	l.LogWrite(b)
	bc.Release(b)
	l.EndOp()

	got := bc.Read(testDataStart)
	require.Equal(t, byte('p'), got.Data()[0])
	bc.Release(got)
}

func TestGroupCommit(t *testing.T) {
	bc, l := mkTestLog(t)

	l.BeginOp()
	l.BeginOp()

	b1 := bc.GetBuf(testDataStart)
	copy(b1.Data(), []byte("one"))
	b1.SetDirty()
	l.LogWrite(b1)
	bc.Release(b1)

	b2 := bc.GetBuf(testDataStart + 1)
	copy(b2.Data(), []byte("two"))
	b2.SetDirty()
	l.LogWrite(b2)
	bc.Release(b2)

	l.EndOp() // outstanding still 1, no commit yet
	require.Equal(t, uint64(1), l.outstanding)

	l.EndOp() // last one out commits both writes together
	require.Equal(t, uint64(0), l.outstanding)

	got1 := bc.Read(testDataStart)
	require.Equal(t, byte('o'), got1.Data()[0])
	bc.Release(got1)
	got2 := bc.Read(testDataStart + 1)
	require.Equal(t, byte('t'), got2.Data()[0])
	bc.Release(got2)
}

func TestRecoverReplaysCommittedHeader(t *testing.T) {
	d := disk.NewMemDisk(testDataStart + 20)
	bc := bcache.MkBcache(d)
	l := MkLog(bc, testLogStart, testLogSize)

	// simulate a crash right after the commit-point header write: log
	// data block holds the new content, header lists it, but the home
	// block was never updated.
	logBlk := bc.GetBuf(testLogStart + 1)
	copy(logBlk.Data(), []byte("recovered"))
	logBlk.SetDirty()
	bc.Write(logBlk)
	bc.Release(logBlk)
	l.writeHeader(1, []uint64{testDataStart})

	l2 := MkLog(bc, testLogStart, testLogSize)
	l2.Recover()

	got := bc.Read(testDataStart)
	require.Equal(t, byte('r'), got.Data()[0])
	bc.Release(got)

	n, _ := l2.readHeader()
	require.Equal(t, uint64(0), n)
}

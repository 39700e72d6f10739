package bcache

import (
	"testing"

	"github.com/mit-pdos/go-sixfs/disk"
	"github.com/stretchr/testify/require"
)

func TestReadWriteRoundtrip(t *testing.T) {
	d := disk.NewMemDisk(8)
	bc := MkBcache(d)

	b := bc.Read(3)
	copy(b.Data(), []byte("hello"))
	b.SetDirty()
	bc.Write(b)
	bc.Release(b)

	b2 := bc.Read(3)
	require.Equal(t, byte('h'), b2.Data()[0])
	bc.Release(b2)
}

func TestEvictionAcrossBuckets(t *testing.T) {
	d := disk.NewMemDisk(NBUF + NBUCKET + 1)
	bc := MkBcache(d)

	// touch more distinct blocks than there are buffers, forcing
	// eviction to find an LRU victim in a different bucket.
	for i := uint64(0); i < NBUF+10; i++ {
		b := bc.Read(i)
		bc.Release(b)
	}
}

func TestPinPreventsEviction(t *testing.T) {
	d := disk.NewMemDisk(NBUF + 5)
	bc := MkBcache(d)

	pinned := bc.Read(0)
	bc.Pin(pinned)
	bc.Release(pinned)

	for i := uint64(1); i < NBUF+4; i++ {
		b := bc.Read(i)
		bc.Release(b)
	}

	again := bc.GetBuf(0)
	require.True(t, again.valid)
	bc.Release(again)
	bc.Unpin(pinned)
}

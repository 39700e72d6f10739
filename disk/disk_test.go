package disk

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDiskReadWrite(t *testing.T) {
	d := NewMemDisk(16)
	b := make(Block, BlockSize)
	for i := range b {
		b[i] = 0x42
	}
	d.Write(5, b)
	got := d.Read(5)
	require.Equal(t, b, got)
	require.Equal(t, uint64(16), d.Size())
}

func TestMemDiskZeroedOnStart(t *testing.T) {
	d := NewMemDisk(4)
	zero := make(Block, BlockSize)
	require.Equal(t, zero, d.Read(0))
}

func TestFileDiskPersists(t *testing.T) {
	f, err := os.CreateTemp("", "sixfs-disk-*.img")
	require.NoError(t, err)
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	d, err := NewFileDisk(path, 8)
	require.NoError(t, err)
	b := make(Block, BlockSize)
	for i := range b {
		b[i] = byte(i)
	}
	d.Write(3, b)
	d.Barrier()
	d.Close()

	d2, err := OpenFileDisk(path, 8)
	require.NoError(t, err)
	defer d2.Close()
	require.Equal(t, b, d2.Read(3))
}

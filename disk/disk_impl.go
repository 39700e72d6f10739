package disk

import (
	"sync"

	"golang.org/x/sys/unix"
)

type MemDisk struct {
	mu     sync.RWMutex
	blocks [][]byte
}

func NewMemDisk(numBlocks uint64) *MemDisk {
	blocks := make([][]byte, numBlocks)
	for i := range blocks {
		blocks[i] = make([]byte, BlockSize)
	}
	return &MemDisk{blocks: blocks}
}

func (d *MemDisk) Read(blockno uint64) Block {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b := make(Block, BlockSize)
	copy(b, d.blocks[blockno])
	return b
}

func (d *MemDisk) Write(blockno uint64, b Block) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.blocks[blockno], b)
}

func (d *MemDisk) Size() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return uint64(len(d.blocks))
}

func (d *MemDisk) Barrier() {}

func (d *MemDisk) Close() {}

// FileDisk stores blocks in a single regular file, using pread/pwrite
// directly rather than buffered I/O so writes of one block never touch
// another's bytes.
type FileDisk struct {
	mu   sync.Mutex
	fd   int
	size uint64
}

func NewFileDisk(path string, numBlocks uint64) (*FileDisk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0666)
	if err != nil {
		return nil, err
	}
	sz := int64(numBlocks * BlockSize)
	if err := unix.Ftruncate(fd, sz); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &FileDisk{fd: fd, size: numBlocks}, nil
}

// OpenFileDisk opens an existing disk image without resizing it, for
// tools that only need to read or update it in place.
func OpenFileDisk(path string, numBlocks uint64) (*FileDisk, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0666)
	if err != nil {
		return nil, err
	}
	return &FileDisk{fd: fd, size: numBlocks}, nil
}

func (d *FileDisk) Read(blockno uint64) Block {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := make(Block, BlockSize)
	n, err := unix.Pread(d.fd, b, int64(blockno*BlockSize))
	if err != nil || uint64(n) != BlockSize {
		panic("FileDisk.Read: short read")
	}
	return b
}

func (d *FileDisk) Write(blockno uint64, b Block) {
	if uint64(len(b)) != BlockSize {
		panic("FileDisk.Write: wrong size block")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := unix.Pwrite(d.fd, b, int64(blockno*BlockSize))
	if err != nil || uint64(n) != BlockSize {
		panic("FileDisk.Write: short write")
	}
}

func (d *FileDisk) Size() uint64 {
	return d.size
}

func (d *FileDisk) Barrier() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := unix.Fsync(d.fd); err != nil {
		panic("FileDisk.Barrier: fsync failed")
	}
}

func (d *FileDisk) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	unix.Close(d.fd)
}

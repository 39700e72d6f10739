package fs

import (
	"github.com/mit-pdos/go-sixfs/disk"
	"github.com/mit-pdos/go-sixfs/inode"
	"github.com/mit-pdos/go-sixfs/wal"
)

// maxWriteChunk bounds how many bytes FileWrite commits per
// transaction: MaxOpBlocks less the inode block, one indirect block,
// and two blocks of slop for a write unaligned to block boundaries,
// split in half since a double-indirect write can touch two index
// blocks along the way.
const maxWriteChunk = ((wal.MaxOpBlocks - 1 - 1 - 2) / 2) * disk.BlockSize

// FileWrite writes data to ip starting at off, chunking the write
// across several transactions so a write larger than maxWriteChunk
// doesn't overrun a single transaction's block budget. ip must be an
// unlocked, ref-held inode (as returned by Create/Open). Returns the
// number of bytes written, which is short of len(data) only if a
// chunk wrote less than requested (disk full).
func (fsys *Fs) FileWrite(ip *inode.Inode, off uint64, data []byte) uint64 {
	var written uint64
	for written < uint64(len(data)) {
		chunk := uint64(len(data)) - written
		if chunk > maxWriteChunk {
			chunk = maxWriteChunk
		}

		fsys.Log.BeginOp()
		fsys.It.Ilock(ip)
		n := fsys.It.Writei(ip, off+written, data[written:written+chunk])
		fsys.It.Iunlock(ip)
		fsys.Log.EndOp()

		written += n
		if n != chunk {
			break
		}
	}
	return written
}

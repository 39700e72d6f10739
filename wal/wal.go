// Package wal implements the classic xv6 write-ahead redo log: a fixed
// region of the disk holds a header block (listing which home blocks
// are part of the pending transaction) followed by that many log data
// blocks. Concurrent transactions between BeginOp and EndOp share one
// log; the last one to finish commits all of them together.
package wal

import (
	"sync"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-sixfs/bcache"
	"github.com/mit-pdos/go-sixfs/util"
)

// MaxOpBlocks bounds how many distinct blocks a single transaction may
// modify, so BeginOp can admit enough outstanding transactions to fill
// the log without ever needing to abort one partway through.
const MaxOpBlocks uint64 = 10

const hdrMeta uint64 = 8 // bytes used for the block count n

// Log is the in-memory state for the on-disk log region
// [start, start+1+Size).  Block `start` is the header; blocks
// start+1 .. start+Size are log data blocks.
type Log struct {
	bc    *bcache.Bcache
	mu    sync.Mutex
	cond  *sync.Cond
	start uint64
	size  uint64 // number of log data blocks, excludes the header

	outstanding uint64
	committing  bool

	n      uint64            // number of blocks in the current transaction
	blkno  []uint64          // home block numbers, len == size
	pinned []*bcache.Buf     // buffers pinned by LogWrite, parallel to blkno[:n]
}

// MkLog creates log state for an already-formatted log region. It does
// not run recovery; call Recover for that.
func MkLog(bc *bcache.Bcache, start uint64, size uint64) *Log {
	l := &Log{
		bc:     bc,
		start:  start,
		size:   size,
		blkno:  make([]uint64, size),
		pinned: make([]*bcache.Buf, 0, size),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func maxLogBlocks() uint64 {
	return (1024 - hdrMeta) / 8
}

// LogSize is how many log data blocks a disk of this design carries,
// bounded by how many block numbers fit in one header block.
func LogSize() uint64 {
	return maxLogBlocks()
}

func (l *Log) readHeader() (uint64, []uint64) {
	b := l.bc.Read(l.start)
	defer l.bc.Release(b)
	dec := marshal.NewDec(b.Data())
	n := dec.GetInt()
	blk := dec.GetInts(l.size)
	return n, blk
}

func (l *Log) writeHeader(n uint64, blk []uint64) {
	b := l.bc.GetBuf(l.start)
	defer l.bc.Release(b)
	enc := marshal.NewEnc(1024)
	enc.PutInt(n)
	enc.PutInts(blk)
	copy(b.Data(), enc.Finish())
	b.SetDirty()
	l.bc.Write(b)
}

// Recover replays a committed-but-not-installed transaction found at
// mount time. Safe to call on a clean log (n == 0 is a no-op).
func (l *Log) Recover() {
	n, blk := l.readHeader()
	if n == 0 {
		return
	}
	util.DPrintf(0, "wal: recovering %d blocks\n", n)
	l.installFrom(n, blk)
	l.writeHeader(0, blk)
}

// BeginOp reserves room in the log for a new transaction, blocking
// while a commit is in progress or while admitting one more
// transaction's worth of blocks could overflow the log.
func (l *Log) BeginOp() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.committing || l.n+(l.outstanding+1)*MaxOpBlocks > l.size {
		l.cond.Wait()
	}
	l.outstanding++
}

// LogWrite records that buf's current content must be committed before
// its home block is overwritten. It pins buf so the cache cannot evict
// it before commit installs it.
func (l *Log) LogWrite(buf *bcache.Buf) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := uint64(0); i < l.n; i++ {
		if l.blkno[i] == buf.Blockno() {
			return // already absorbed into this transaction
		}
	}
	if l.n >= l.size {
		panic("wal: log overflow")
	}
	l.blkno[l.n] = buf.Blockno()
	l.pinned = append(l.pinned, buf)
	l.n++
	l.bc.Pin(buf)
}

// EndOp ends one transaction. If it is the last outstanding
// transaction, it commits the whole group to the log and installs it
// to the home locations before returning.
func (l *Log) EndOp() {
	l.mu.Lock()
	l.outstanding--
	if l.committing {
		l.mu.Unlock()
		panic("wal: EndOp during commit")
	}
	doCommit := false
	if l.outstanding == 0 {
		doCommit = true
		l.committing = true
	} else {
		l.cond.Broadcast()
	}
	l.mu.Unlock()

	if doCommit {
		l.commit()
		l.mu.Lock()
		l.committing = false
		l.cond.Broadcast()
		l.mu.Unlock()
	}
}

func (l *Log) commit() {
	l.mu.Lock()
	n := l.n
	blk := append([]uint64(nil), l.blkno[:n]...)
	pinned := l.pinned
	l.mu.Unlock()

	if n > 0 {
		l.writeLog(n, blk)
		l.writeHeader(n, blk) // commit point
		l.installFrom(n, blk)
		l.writeHeader(0, blk) // erase the transaction
	}

	for _, b := range pinned {
		l.bc.Unpin(b)
	}

	l.mu.Lock()
	l.n = 0
	l.pinned = l.pinned[:0]
	l.mu.Unlock()
}

func (l *Log) writeLog(n uint64, blk []uint64) {
	for tail := uint64(0); tail < n; tail++ {
		from := l.bc.Read(blk[tail])
		to := l.bc.GetBuf(l.start + 1 + tail)
		copy(to.Data(), from.Data())
		to.SetDirty()
		l.bc.Write(to)
		l.bc.Release(to)
		l.bc.Release(from)
	}
}

func (l *Log) installFrom(n uint64, blk []uint64) {
	for tail := uint64(0); tail < n; tail++ {
		from := l.bc.Read(l.start + 1 + tail)
		to := l.bc.GetBuf(blk[tail])
		copy(to.Data(), from.Data())
		to.SetDirty()
		l.bc.Write(to)
		l.bc.Release(to)
		l.bc.Release(from)
	}
}

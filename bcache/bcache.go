// Package bcache implements a bucket-locked, globally LRU block buffer
// cache, the same design xv6's bio.c uses: each hash bucket has its own
// lock for the fast path of a cache hit, and a single eviction lock
// serializes the slow path of finding a victim across every bucket.
package bcache

import (
	"sync"
	"time"

	"github.com/mit-pdos/go-sixfs/disk"
	"github.com/mit-pdos/go-sixfs/stats"
)

const NBUCKET uint64 = 13
const NBUF uint64 = NBUCKET * 4

// Buf is one cached block. blockno, valid, refcnt and lastuse are
// protected by the owning bucket's lock; the block's content (and
// dirty) is protected by mu, a sleep-lock that may be held across a
// disk read or write.
type Buf struct {
	mu      sync.Mutex
	bucket  uint64
	blockno uint64
	valid   bool
	dirty   bool
	refcnt  uint32
	lastuse uint64
	data    disk.Block
	next    *Buf
}

func (b *Buf) Blockno() uint64 {
	return b.blockno
}

// Data returns the buffer's content. The caller must hold the buffer
// locked (via Bcache.Read or Bcache.GetBuf).
func (b *Buf) Data() disk.Block {
	return b.data
}

func (b *Buf) SetDirty() {
	b.dirty = true
}

type bucket struct {
	mu   sync.Mutex
	head *Buf
}

type Bcache struct {
	d disk.Disk

	// evictionLock serializes the slow path that scans every bucket
	// for an LRU victim; it is acquired in addition to, never nested
	// inside, a bucket lock.
	evictionLock sync.Mutex
	buckets      [NBUCKET]*bucket

	tickMu sync.Mutex
	tick   uint64

	hits    stats.Op
	misses  stats.Op
	evicted stats.Op
}

func MkBcache(d disk.Disk) *Bcache {
	bc := &Bcache{d: d}
	for i := range bc.buckets {
		bc.buckets[i] = &bucket{}
	}
	// seed every bucket with an even share of free buffers, so the
	// first NBUF distinct blocks touched never need eviction.
	for i := uint64(0); i < NBUF; i++ {
		buf := &Buf{bucket: i % NBUCKET, blockno: ^uint64(0)}
		bk := bc.buckets[buf.bucket]
		buf.next = bk.head
		bk.head = buf
	}
	return bc
}

func (bc *Bcache) nextTick() uint64 {
	bc.tickMu.Lock()
	defer bc.tickMu.Unlock()
	bc.tick++
	return bc.tick
}

// GetBuf returns the buffer for blockno, content-locked, with its
// reference count bumped. The caller must call Release when done. A
// block that is not already cached is not read from disk: its buffer
// comes back zero-filled and valid, for callers that overwrite the
// whole block.
func (bc *Bcache) GetBuf(blockno uint64) *Buf {
	b := bc.bget(blockno)
	if !b.valid {
		b.data = make(disk.Block, disk.BlockSize)
		b.valid = true
	}
	return b
}

// bget finds or claims the buffer for blockno, content-locked, with its
// reference count bumped; valid is false if it was just claimed.
func (bc *Bcache) bget(blockno uint64) *Buf {
	idx := blockno % NBUCKET
	bk := bc.buckets[idx]

	bk.mu.Lock()
	for b := bk.head; b != nil; b = b.next {
		if b.valid && b.blockno == blockno {
			b.refcnt++
			bk.mu.Unlock()
			bc.hits.Record(time.Now())
			b.mu.Lock()
			return b
		}
	}
	bk.mu.Unlock()

	// Slow path: find a globally LRU victim. Serialize with other
	// evictions, then recheck the target bucket in case a concurrent
	// evictor just installed this exact block.
	bc.evictionLock.Lock()
	defer bc.evictionLock.Unlock()

	bk.mu.Lock()
	for b := bk.head; b != nil; b = b.next {
		if b.valid && b.blockno == blockno {
			b.refcnt++
			bk.mu.Unlock()
			bc.hits.Record(time.Now())
			b.mu.Lock()
			return b
		}
	}
	bk.mu.Unlock()

	var victim *Buf
	holding := ^uint64(0)
	for i := uint64(0); i < NBUCKET; i++ {
		cand := bc.buckets[i]
		cand.mu.Lock()
		found := false
		for b := cand.head; b != nil; b = b.next {
			if b.refcnt == 0 && (victim == nil || b.lastuse < victim.lastuse) {
				victim = b
				found = true
			}
		}
		if !found {
			cand.mu.Unlock()
		} else {
			if holding != ^uint64(0) {
				bc.buckets[holding].mu.Unlock()
			}
			holding = i
		}
	}
	if victim == nil {
		panic("bcache: no free buffer to evict")
	}
	bc.evicted.Record(time.Now())

	if holding != idx {
		removeFromBucket(bc.buckets[holding], victim)
		bk.mu.Lock()
		victim.next = bk.head
		bk.head = victim
		victim.bucket = idx
		bk.mu.Unlock()
		bc.buckets[holding].mu.Unlock()
	} else {
		bc.buckets[holding].mu.Unlock()
	}

	victim.blockno = blockno
	victim.valid = false
	victim.dirty = false
	victim.refcnt = 1
	bc.misses.Record(time.Now())
	victim.mu.Lock()
	return victim
}

func removeFromBucket(bk *bucket, b *Buf) {
	if bk.head == b {
		bk.head = b.next
		b.next = nil
		return
	}
	for p := bk.head; p != nil; p = p.next {
		if p.next == b {
			p.next = b.next
			b.next = nil
			return
		}
	}
	panic("bcache: buffer not in its bucket")
}

// Read returns the content-locked buffer for blockno, reading it from
// disk if this is the first time it has been cached.
func (bc *Bcache) Read(blockno uint64) *Buf {
	b := bc.bget(blockno)
	if !b.valid {
		b.data = bc.d.Read(blockno)
		b.valid = true
	}
	return b
}

// Write writes a dirty buffer through to disk. The caller still holds
// the buffer locked and must Release it afterward.
func (bc *Bcache) Write(b *Buf) {
	if !b.dirty {
		return
	}
	bc.d.Write(b.blockno, b.data)
	b.dirty = false
}

// Release unlocks the buffer's content and drops its reference. The
// buffer becomes eligible for eviction once refcnt reaches 0.
func (bc *Bcache) Release(b *Buf) {
	b.mu.Unlock()
	bk := bc.buckets[b.bucket]
	bk.mu.Lock()
	b.refcnt--
	if b.refcnt == 0 {
		b.lastuse = bc.nextTick()
	}
	bk.mu.Unlock()
}

// Pin keeps a buffer from being evicted without holding its content
// lock, for the log to hold across a transaction.
func (bc *Bcache) Pin(b *Buf) {
	bk := bc.buckets[b.bucket]
	bk.mu.Lock()
	b.refcnt++
	bk.mu.Unlock()
}

func (bc *Bcache) Unpin(b *Buf) {
	bk := bc.buckets[b.bucket]
	bk.mu.Lock()
	b.refcnt--
	if b.refcnt == 0 {
		b.lastuse = bc.nextTick()
	}
	bk.mu.Unlock()
}

func (bc *Bcache) Barrier() {
	bc.d.Barrier()
}

func (bc *Bcache) Size() uint64 {
	return bc.d.Size()
}

func (bc *Bcache) Stats() (names []string, ops []stats.Op) {
	return []string{"bcache.hit", "bcache.miss", "bcache.evict"},
		[]stats.Op{bc.hits, bc.misses, bc.evicted}
}

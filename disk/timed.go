package disk

import (
	"io"
	"time"

	"github.com/mit-pdos/go-sixfs/stats"
)

// Timed wraps a Disk and records call counts and latency for each
// operation, for cmd/fsstat to report.
type Timed struct {
	d   Disk
	ops [3]stats.Op
}

const (
	readOp int = iota
	writeOp
	barrierOp
)

var opNames = []string{"disk.Read", "disk.Write", "disk.Barrier"}

func NewTimed(d Disk) *Timed {
	return &Timed{d: d}
}

func (d *Timed) Read(blockno uint64) Block {
	defer d.ops[readOp].Record(time.Now())
	return d.d.Read(blockno)
}

func (d *Timed) Write(blockno uint64, b Block) {
	defer d.ops[writeOp].Record(time.Now())
	d.d.Write(blockno, b)
}

func (d *Timed) Barrier() {
	defer d.ops[barrierOp].Record(time.Now())
	d.d.Barrier()
}

func (d *Timed) Size() uint64 {
	return d.d.Size()
}

func (d *Timed) Close() {
	d.d.Close()
}

func (d *Timed) WriteStats(w io.Writer) {
	stats.WriteTable(opNames, d.ops[:], w)
}

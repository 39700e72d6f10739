// Package stats tracks per-operation call counts and latency for the
// disk and the buffer cache, and renders them as a table.
package stats

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/rodaine/table"
)

type Op struct {
	count uint64
	nanos uint64
}

func (o *Op) Record(start time.Time) {
	atomic.AddUint64(&o.count, 1)
	atomic.AddUint64(&o.nanos, uint64(time.Since(start).Nanoseconds()))
}

func (o *Op) Reset() {
	atomic.StoreUint64(&o.count, 0)
	atomic.StoreUint64(&o.nanos, 0)
}

func (o *Op) Count() uint64 {
	return atomic.LoadUint64(&o.count)
}

func (o *Op) MicrosPerOp() float64 {
	cnt := o.Count()
	if cnt == 0 {
		return 0.0
	}
	return float64(atomic.LoadUint64(&o.nanos)) / float64(cnt) / 1000.0
}

// WriteTable prints one row per name/op pair: name, call count, average
// latency in microseconds.
func WriteTable(names []string, ops []Op, w io.Writer) {
	tbl := table.New("Op", "Count", "Us/op")
	tbl.WithWriter(w)
	for i, name := range names {
		tbl.AddRow(name, ops[i].Count(), ops[i].MicrosPerOp())
	}
	tbl.Print()
}

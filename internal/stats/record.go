// Package stats implements the per-device request counters and their text report.
package stats

import "sync/atomic"

// Direction is the direction of a block request.
type Direction int

// Supported request directions.
const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	if d == Read {
		return "read"
	}

	return "write"
}

// ForwardDecision tells the caller what to do with an observed request.
type ForwardDecision int

// ForwardUnchanged means the request must be passed to the underlying device as is.
const ForwardUnchanged ForwardDecision = iota

// Record holds read and write counters of a single device instance.
//
// Counters only grow and may wrap around on overflow. Each field is updated
// independently, so a concurrent Snapshot may see a request count without its
// size (or the other way around) but never loses an update.
// The zero value is an empty record ready for use.
type Record struct {
	readCount  atomic.Uint64
	writeCount atomic.Uint64
	readBytes  atomic.Uint64
	writeBytes atomic.Uint64
}

// Observe accounts a single request of a given direction and size in bytes.
// Zero-size requests are counted too. It never blocks and never fails.
func (r *Record) Observe(dir Direction, size uint64) ForwardDecision {
	if dir == Read {
		r.readCount.Add(1)
		r.readBytes.Add(size)
	} else {
		r.writeCount.Add(1)
		r.writeBytes.Add(size)
	}

	return ForwardUnchanged
}

// Snapshot returns an approximation of the current counter values.
// It is approximate because the four loads are not a single atomic operation.
func (r *Record) Snapshot() Snapshot {
	return Snapshot{
		ReadCount:  r.readCount.Load(),
		WriteCount: r.writeCount.Load(),
		ReadBytes:  r.readBytes.Load(),
		WriteBytes: r.writeBytes.Load(),
	}
}

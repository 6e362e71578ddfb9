// Package dmp implements the statistics target, a pass-through target that counts
// the read and write requests of the device it is attached to and forwards them unchanged.
package dmp

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/dmstat/dmstat/internal/logging"
	"github.com/dmstat/dmstat/internal/stats"
	"github.com/dmstat/dmstat/target"
)

var log = logging.Module("dmstat/dmp")

// TypeName is the name of the target type.
const TypeName = "dmp_target"

// ErrDestroyed is returned when destroying a target more than once.
var ErrDestroyed = errors.New("target already destroyed")

// Target states.
const (
	stateUninitialized int32 = iota
	stateActive
	stateDestroyed
)

// TargetType is the target.Type of statistics targets.
type TargetType struct{}

// Name implements target.Type.
func (TargetType) Name() string {
	return TypeName
}

// Version implements target.Type.
func (TargetType) Version() target.Version {
	return target.Version{Major: 1}
}

// New implements target.Type. The statistics target takes no arguments, any provided are ignored.
func (TargetType) New(ctx context.Context, args []string) (target.Mapper, error) {
	if len(args) > 0 {
		log(ctx).Debugf("ignoring target arguments: %q", args)
	}

	return New(), nil
}

// Target counts requests of a single device.
type Target struct {
	state atomic.Int32

	// rec is nil once the target has been destroyed.
	rec atomic.Pointer[stats.Record]
}

// New returns an active target with all counters at zero.
func New() *Target {
	t := &Target{}
	t.rec.Store(&stats.Record{})
	t.state.Store(stateActive)

	return t
}

func direction(req target.Request) stats.Direction {
	if req.Direction == target.Write {
		return stats.Write
	}

	return stats.Read
}

// Map implements target.Mapper. It must not be called after Close.
func (t *Target) Map(req target.Request) target.Decision {
	t.rec.Load().Observe(direction(req), req.Size)

	return target.MapRemapped
}

// Stats returns the current counter values, or zeros once the target has been destroyed.
func (t *Target) Stats() stats.Snapshot {
	rec := t.rec.Load()
	if rec == nil {
		return stats.Snapshot{}
	}

	return rec.Snapshot()
}

// Status implements target.StatusReporter.
func (t *Target) Status() string {
	return t.Stats().Report()
}

// Active returns true between construction and destruction.
func (t *Target) Active() bool {
	return t.state.Load() == stateActive
}

// Close implements target.Mapper.
func (t *Target) Close(ctx context.Context) error {
	if !t.state.CompareAndSwap(stateActive, stateDestroyed) {
		return ErrDestroyed
	}

	final := t.rec.Swap(nil).Snapshot()

	log(ctx).Debugf("destroyed target after %v reads (%v bytes) and %v writes (%v bytes)",
		final.ReadCount, final.ReadBytes, final.WriteCount, final.WriteBytes)

	return nil
}

var (
	_ target.Type           = TargetType{}
	_ target.Mapper         = (*Target)(nil)
	_ target.StatusReporter = (*Target)(nil)
)

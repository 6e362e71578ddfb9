// Package devtesting implements in-memory devices and helpers for testing block devices.
package devtesting

import (
	"sync"
	"sync/atomic"

	"github.com/dmstat/dmstat/blockdev"
)

// MemDevice is an in-memory blockdev.Device.
type MemDevice struct {
	mu sync.RWMutex
	// +checklocks:mu
	data []byte

	syncCount  atomic.Int32
	closeCount atomic.Int32
}

// NewMemDevice returns a zero-filled in-memory device of a given size.
func NewMemDevice(size int64) *MemDevice {
	return &MemDevice{data: make([]byte, size)}
}

// ReadAt implements blockdev.Device.
func (d *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := blockdev.CheckRange(off, len(p), int64(len(d.data))); err != nil {
		return 0, err
	}

	return copy(p, d.data[off:]), nil
}

// WriteAt implements blockdev.Device.
func (d *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := blockdev.CheckRange(off, len(p), int64(len(d.data))); err != nil {
		return 0, err
	}

	return copy(d.data[off:], p), nil
}

// Size implements blockdev.Device.
func (d *MemDevice) Size() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return int64(len(d.data))
}

// Sync implements blockdev.Device.
func (d *MemDevice) Sync() error {
	d.syncCount.Add(1)
	return nil
}

// Close implements blockdev.Device.
func (d *MemDevice) Close() error {
	d.closeCount.Add(1)
	return nil
}

// DisplayName implements blockdev.Device.
func (d *MemDevice) DisplayName() string {
	return "memory"
}

// Bytes returns a copy of the device contents.
func (d *MemDevice) Bytes() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return append([]byte(nil), d.data...)
}

// SyncCount returns the number of times Sync was called.
func (d *MemDevice) SyncCount() int {
	return int(d.syncCount.Load())
}

// CloseCount returns the number of times Close was called.
func (d *MemDevice) CloseCount() int {
	return int(d.closeCount.Load())
}

var _ blockdev.Device = (*MemDevice)(nil)

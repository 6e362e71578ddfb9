// Package blockdev defines the interface of the physical devices that logical devices are mapped onto.
package blockdev

import (
	"io"

	"github.com/pkg/errors"
)

// ErrOutOfRange is returned for requests that do not fit within the device.
var ErrOutOfRange = errors.New("request beyond end of device")

// ErrReadOnly is returned when writing to a read-only device.
var ErrReadOnly = errors.New("device is read-only")

// ReadWriter provides positional block I/O.
//
// Unlike regular files, devices have a fixed size and reject requests
// that do not fit entirely within [0, Size()).
type ReadWriter interface {
	io.ReaderAt
	io.WriterAt

	// Size returns the size of the device in bytes.
	Size() int64

	// Sync flushes all written data to stable storage.
	Sync() error
}

// Device is a physical device owned by exactly one logical device.
type Device interface {
	ReadWriter

	// Close releases all resources associated with the device.
	Close() error

	// DisplayName is used for quick identification by humans.
	DisplayName() string
}

// CheckRange returns ErrOutOfRange when the n bytes starting at off do not fit in a device of a given size.
func CheckRange(off int64, n int, size int64) error {
	if off < 0 || off > size || int64(n) > size-off {
		return errors.Wrapf(ErrOutOfRange, "offset %v length %v device size %v", off, n, size)
	}

	return nil
}

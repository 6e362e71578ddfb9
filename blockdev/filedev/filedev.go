// Package filedev implements a physical device backed by a regular file or a block device node.
package filedev

import (
	"context"
	"io"
	"os"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/dmstat/dmstat/blockdev"
	"github.com/dmstat/dmstat/internal/logging"
)

var log = logging.Module("dmstat/filedev")

const defaultFileMode os.FileMode = 0o600

// ErrBusy is returned when the device is exclusively held by another instance.
var ErrBusy = errors.New("device is busy")

// Options defines options for file-backed devices.
type Options struct {
	// Path to the backing file or block device node.
	Path string `json:"path"`

	// CreateSize, when positive, creates a sparse backing file of a given size if it does not exist.
	CreateSize int64 `json:"createSize,omitempty"`

	ReadOnly bool `json:"readOnly,omitempty"`

	// Exclusive takes an advisory lock so that the device can't be mapped twice.
	Exclusive bool `json:"exclusive,omitempty"`
}

type fileDevice struct {
	f        *os.File
	lock     *flock.Flock
	size     int64
	path     string
	readOnly bool
}

func (d *fileDevice) ReadAt(p []byte, off int64) (int, error) {
	if err := blockdev.CheckRange(off, len(p), d.size); err != nil {
		return 0, err
	}

	n, err := d.f.ReadAt(p, off)

	return n, errors.Wrap(err, "read error")
}

func (d *fileDevice) WriteAt(p []byte, off int64) (int, error) {
	if d.readOnly {
		return 0, blockdev.ErrReadOnly
	}

	if err := blockdev.CheckRange(off, len(p), d.size); err != nil {
		return 0, err
	}

	n, err := d.f.WriteAt(p, off)

	return n, errors.Wrap(err, "write error")
}

func (d *fileDevice) Size() int64 {
	return d.size
}

func (d *fileDevice) Sync() error {
	if d.readOnly {
		return nil
	}

	return errors.Wrap(d.f.Sync(), "sync error")
}

func (d *fileDevice) Close() error {
	err := d.f.Close()

	if d.lock != nil {
		if uerr := d.lock.Unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}

	return errors.Wrap(err, "error closing device")
}

func (d *fileDevice) DisplayName() string {
	return "file: " + d.path
}

func maybeCreate(ctx context.Context, opt *Options) error {
	if opt.CreateSize <= 0 {
		return nil
	}

	f, err := os.OpenFile(opt.Path, os.O_RDWR|os.O_CREATE|os.O_EXCL, defaultFileMode)
	if os.IsExist(err) {
		return nil
	}

	if err != nil {
		return errors.Wrap(err, "unable to create backing file")
	}

	log(ctx).Debugf("created backing file %v of %v bytes", opt.Path, opt.CreateSize)

	if err := f.Truncate(opt.CreateSize); err != nil {
		f.Close() //nolint:errcheck
		return errors.Wrap(err, "unable to set backing file size")
	}

	return errors.Wrap(f.Close(), "unable to close backing file")
}

// Open opens the backing device.
func Open(ctx context.Context, opt *Options) (blockdev.Device, error) {
	if opt.Path == "" {
		return nil, errors.New("backing device path must be specified")
	}

	if err := maybeCreate(ctx, opt); err != nil {
		return nil, err
	}

	flags := os.O_RDWR
	if opt.ReadOnly {
		flags = os.O_RDONLY
	}

	f, err := os.OpenFile(opt.Path, flags, 0)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open backing device")
	}

	// works for both regular files and block device nodes
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close() //nolint:errcheck
		return nil, errors.Wrap(err, "unable to determine device size")
	}

	d := &fileDevice{f: f, size: size, path: opt.Path, readOnly: opt.ReadOnly}

	if opt.Exclusive {
		d.lock = flock.New(opt.Path)

		locked, err := d.lock.TryLock()
		if err != nil {
			f.Close() //nolint:errcheck
			return nil, errors.Wrap(err, "unable to lock backing device")
		}

		if !locked {
			f.Close() //nolint:errcheck
			return nil, errors.Wrap(ErrBusy, opt.Path)
		}
	}

	log(ctx).Debugf("opened %v (%v bytes, read-only: %v)", opt.Path, size, opt.ReadOnly)

	return d, nil
}

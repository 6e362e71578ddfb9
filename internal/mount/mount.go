// Package mount manages operating system mount points exposing devices of a registry.
package mount

import (
	"context"

	"github.com/pkg/errors"

	"github.com/dmstat/dmstat/internal/logging"
	"github.com/dmstat/dmstat/internal/service"
)

var log = logging.Module("dmstat/mount")

// Controller allows controlling mounts.
type Controller interface {
	Unmount(ctx context.Context) error
	MountPath() string
	Done() <-chan struct{}
}

// Options passed to FUSE mounts.
type Options struct {
	FuseAllowOther         bool
	FuseAllowNonEmptyMount bool
	Debug                  bool
}

// Endpoint mounts the devices of a service for the lifetime of the service.
type Endpoint struct {
	// MountPoint is the directory to mount at, "*" mounts in a temporary directory.
	MountPoint string
	Options    Options

	ctrl Controller
}

// Name implements service.Endpoint.
func (e *Endpoint) Name() string {
	return "FUSE mount"
}

// Controller returns the controller of an active mount.
func (e *Endpoint) Controller() Controller {
	return e.ctrl
}

// Start implements service.Endpoint.
func (e *Endpoint) Start(ctx context.Context, s *service.Service) error {
	c, err := Devices(ctx, s.Registry(), e.MountPoint, e.Options)
	if err != nil {
		return err
	}

	log(ctx).Infof("mounted devices at %v", c.MountPath())

	e.ctrl = c

	return nil
}

// Stop implements service.Endpoint.
func (e *Endpoint) Stop(ctx context.Context) error {
	if e.ctrl == nil {
		return nil
	}

	if err := e.ctrl.Unmount(ctx); err != nil {
		return errors.Wrap(err, "unable to unmount")
	}

	<-e.ctrl.Done()

	e.ctrl = nil

	return nil
}

var _ service.Endpoint = (*Endpoint)(nil)

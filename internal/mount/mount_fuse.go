//go:build !windows && !openbsd && !freebsd

package mount

import (
	"context"
	"os"
	"time"

	gofusefs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/pkg/errors"

	"github.com/dmstat/dmstat/internal/fusemount"
	"github.com/dmstat/dmstat/target"
)

// devices come and go, so the kernel may only briefly cache lookups.
const cacheTimeout = time.Second

func (mo *Options) toFuseMountOptions() *gofusefs.Options {
	timeout := cacheTimeout

	opts := &gofusefs.Options{
		EntryTimeout: &timeout,
		AttrTimeout:  &timeout,
		MountOptions: fuse.MountOptions{
			AllowOther: mo.FuseAllowOther,
			FsName:     "dmstat",
			Name:       "dmstat",
			Debug:      mo.Debug,
		},
	}

	if mo.FuseAllowNonEmptyMount {
		opts.MountOptions.Options = append(opts.MountOptions.Options, "nonempty")
	}

	return opts
}

// Devices mounts the devices of a given registry using FUSE.
func Devices(ctx context.Context, r *target.Registry, mountPoint string, mountOptions Options) (Controller, error) {
	isTempDir := false

	if mountPoint == "*" {
		var err error

		mountPoint, err = os.MkdirTemp("", "dmstat-mount")
		if err != nil {
			return nil, errors.Wrap(err, "error creating temp directory")
		}

		isTempDir = true
	}

	rootNode := fusemount.NewRootNode(r)

	fuseServer, err := gofusefs.Mount(mountPoint, rootNode, mountOptions.toFuseMountOptions())
	if err != nil {
		if isTempDir {
			os.Remove(mountPoint) //nolint:errcheck
		}

		return nil, errors.Wrap(err, "mounting error")
	}

	done := make(chan struct{})

	go func() {
		fuseServer.Wait()
		log(ctx).Debugf("fuse server for %v finished", mountPoint)
		close(done)
	}()

	return fuseController{mountPoint, fuseServer, done, isTempDir}, nil
}

type fuseController struct {
	mountPoint string
	fuseServer *fuse.Server
	done       chan struct{}
	isTempDir  bool
}

func (fc fuseController) MountPath() string {
	return fc.mountPoint
}

func (fc fuseController) Unmount(ctx context.Context) error {
	if err := fc.fuseServer.Unmount(); err != nil {
		return errors.Wrap(err, "unmount error")
	}

	if fc.isTempDir {
		<-fc.done

		if err := os.Remove(fc.mountPoint); err != nil {
			return errors.Wrap(err, "unable to remove temporary mount point")
		}
	}

	return nil
}

func (fc fuseController) Done() <-chan struct{} {
	return fc.done
}

//go:build linux

package mount_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmstat/dmstat/blockdev"
	"github.com/dmstat/dmstat/dmp"
	"github.com/dmstat/dmstat/internal/devtesting"
	"github.com/dmstat/dmstat/internal/mount"
	"github.com/dmstat/dmstat/internal/service"
	"github.com/dmstat/dmstat/internal/testlogging"
	"github.com/dmstat/dmstat/target"
)

func TestMountDevices(t *testing.T) {
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("FUSE not available")
	}

	ctx := testlogging.Context(t)

	svc := service.New(service.Options{
		Registry: target.Options{
			Open: func(ctx context.Context, spec target.DeviceSpec) (blockdev.Device, error) {
				return devtesting.NewMemDevice(1 << 16), nil
			},
		},
	})

	ep := &mount.Endpoint{MountPoint: "*"}
	if err := svc.Start(ctx, ep); err != nil {
		t.Skipf("unable to mount: %v", err)
	}

	mp := ep.Controller().MountPath()

	_, err := svc.Registry().CreateDevice(ctx, target.DeviceSpec{Name: "vol0", Type: dmp.TypeName, Backing: "mem"})
	require.NoError(t, err)

	entries, err := os.ReadDir(mp)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "vol0", entries[0].Name())

	f, err := os.OpenFile(filepath.Join(mp, "vol0", "device"), os.O_RDWR, 0)
	require.NoError(t, err)

	_, err = f.WriteAt(make([]byte, 4096), 0)
	require.NoError(t, err)

	_, err = f.ReadAt(make([]byte, 8192), 0)
	require.NoError(t, err)

	require.NoError(t, f.Close())

	b, err := os.ReadFile(filepath.Join(mp, "vol0", "stat"))
	require.NoError(t, err)
	require.Equal(t,
		"read:\n  reqs: 1\n  avg size: 8192\n"+
			"write:\n  reqs: 1\n  avg size: 4096\n"+
			"total:\n  reqs: 2\n  avg size: 6144\n", string(b))

	require.NoError(t, svc.Stop(ctx))

	_, err = os.Stat(mp)
	require.True(t, os.IsNotExist(err))
}

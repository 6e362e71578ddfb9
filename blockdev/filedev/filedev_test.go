package filedev_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmstat/dmstat/blockdev"
	"github.com/dmstat/dmstat/blockdev/filedev"
	"github.com/dmstat/dmstat/internal/devtesting"
	"github.com/dmstat/dmstat/internal/testlogging"
)

func TestFileDevice(t *testing.T) {
	ctx := testlogging.Context(t)
	path := filepath.Join(t.TempDir(), "disk.img")

	d, err := filedev.Open(ctx, &filedev.Options{Path: path, CreateSize: 1 << 20})
	require.NoError(t, err)

	defer d.Close() //nolint:errcheck

	require.Equal(t, int64(1<<20), d.Size())
	require.Contains(t, d.DisplayName(), path)

	devtesting.VerifyDevice(t, d)

	require.NoError(t, d.Close())

	// contents survive reopening, existing file is not recreated
	d2, err := filedev.Open(ctx, &filedev.Options{Path: path, CreateSize: 4096, ReadOnly: true})
	require.NoError(t, err)

	defer d2.Close() //nolint:errcheck

	require.Equal(t, int64(1<<20), d2.Size())
	devtesting.AssertReadAt(t, d2, 20000, []byte{3})

	_, err = d2.WriteAt([]byte{1}, 0)
	require.ErrorIs(t, err, blockdev.ErrReadOnly)
	require.NoError(t, d2.Sync())
}

func TestFileDevice_Missing(t *testing.T) {
	ctx := testlogging.Context(t)

	_, err := filedev.Open(ctx, &filedev.Options{Path: filepath.Join(t.TempDir(), "no-such-file")})
	require.Error(t, err)

	_, err = filedev.Open(ctx, &filedev.Options{})
	require.Error(t, err)
}

func TestFileDevice_Exclusive(t *testing.T) {
	ctx := testlogging.Context(t)
	path := filepath.Join(t.TempDir(), "disk.img")

	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o600))

	d1, err := filedev.Open(ctx, &filedev.Options{Path: path, Exclusive: true})
	require.NoError(t, err)

	_, err = filedev.Open(ctx, &filedev.Options{Path: path, Exclusive: true})
	require.ErrorIs(t, err, filedev.ErrBusy)

	require.NoError(t, d1.Close())

	d3, err := filedev.Open(ctx, &filedev.Options{Path: path, Exclusive: true})
	require.NoError(t, err)
	require.NoError(t, d3.Close())
}

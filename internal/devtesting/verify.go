package devtesting

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmstat/dmstat/blockdev"
)

// MinVerifySize is the minimum device size required by VerifyDevice.
const MinVerifySize = 64 << 10

// VerifyDevice verifies the behavior of the specified read-write device.
// The device must be at least MinVerifySize bytes long.
//
//nolint:thelper
func VerifyDevice(t *testing.T, d blockdev.ReadWriter) {
	size := d.Size()
	require.GreaterOrEqual(t, size, int64(MinVerifySize))

	blocks := []struct {
		off      int64
		contents []byte
	}{
		{off: 0, contents: bytes.Repeat([]byte{1}, 512)},
		{off: 4096, contents: bytes.Repeat([]byte{2}, 8192)},
		{off: 20000, contents: []byte{3}},
		{off: size - 1000, contents: bytes.Repeat([]byte{4}, 1000)},
	}

	t.Run("WriteBlocks", func(t *testing.T) {
		for _, b := range blocks {
			n, err := d.WriteAt(b.contents, b.off)
			require.NoError(t, err)
			require.Equal(t, len(b.contents), n)
		}
	})

	t.Run("ReadBlocks", func(t *testing.T) {
		for _, b := range blocks {
			t.Run(fmt.Sprintf("off-%v", b.off), func(t *testing.T) {
				AssertReadAt(t, d, b.off, b.contents)
			})
		}
	})

	t.Run("ZeroLength", func(t *testing.T) {
		n, err := d.ReadAt(nil, 100)
		require.NoError(t, err)
		require.Zero(t, n)

		n, err = d.WriteAt(nil, size)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		buf := make([]byte, 100)

		_, err := d.ReadAt(buf, size-50)
		require.ErrorIs(t, err, blockdev.ErrOutOfRange)

		_, err = d.WriteAt(buf, size)
		require.ErrorIs(t, err, blockdev.ErrOutOfRange)

		_, err = d.ReadAt(buf, -1)
		require.ErrorIs(t, err, blockdev.ErrOutOfRange)
	})

	t.Run("Sync", func(t *testing.T) {
		require.NoError(t, d.Sync())
	})
}

// AssertReadAt asserts that the device has the expected contents at a given offset.
func AssertReadAt(t *testing.T, d blockdev.ReadWriter, off int64, expected []byte) {
	t.Helper()

	buf := make([]byte, len(expected))

	n, err := d.ReadAt(buf, off)
	require.NoError(t, err)
	require.Equal(t, len(expected), n)
	require.True(t, bytes.Equal(expected, buf), "unexpected contents at offset %v", off)
}

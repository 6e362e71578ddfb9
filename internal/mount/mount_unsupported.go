//go:build windows || freebsd || openbsd

package mount

import (
	"context"

	"github.com/pkg/errors"

	"github.com/dmstat/dmstat/target"
)

// Devices returns an error due to mounting being unsupported on current operating system.
//
//nolint:revive
func Devices(ctx context.Context, r *target.Registry, mountPoint string, mountOptions Options) (Controller, error) {
	return nil, errors.New("mounting is not supported")
}

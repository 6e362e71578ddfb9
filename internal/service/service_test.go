package service_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/dmstat/dmstat/blockdev"
	"github.com/dmstat/dmstat/dmp"
	"github.com/dmstat/dmstat/internal/devtesting"
	"github.com/dmstat/dmstat/internal/service"
	"github.com/dmstat/dmstat/internal/testlogging"
	"github.com/dmstat/dmstat/target"
)

type recordingEndpoint struct {
	name     string
	startErr error
	events   *[]string
}

func (e *recordingEndpoint) Name() string { return e.name }

func (e *recordingEndpoint) Start(ctx context.Context, s *service.Service) error {
	if e.startErr != nil {
		*e.events = append(*e.events, "fail "+e.name)
		return e.startErr
	}

	*e.events = append(*e.events, "start "+e.name)

	return nil
}

func (e *recordingEndpoint) Stop(ctx context.Context) error {
	*e.events = append(*e.events, "stop "+e.name)
	return nil
}

func newTestService() *service.Service {
	return service.New(service.Options{
		Registry: target.Options{
			Open: func(ctx context.Context, spec target.DeviceSpec) (blockdev.Device, error) {
				return devtesting.NewMemDevice(4096), nil
			},
		},
	})
}

func TestService_StartStop(t *testing.T) {
	ctx := testlogging.Context(t)
	s := newTestService()

	var events []string

	require.NoError(t, s.Start(ctx,
		&recordingEndpoint{name: "a", events: &events},
		&recordingEndpoint{name: "b", events: &events}))

	require.Error(t, s.Start(ctx))

	types := s.Registry().Types()
	require.Len(t, types, 1)
	require.Equal(t, dmp.TypeName, types[0].Name())

	d, err := s.Registry().CreateDevice(ctx, target.DeviceSpec{Name: "vol0", Type: dmp.TypeName})
	require.NoError(t, err)

	require.NoError(t, s.Stop(ctx))
	require.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, events)

	require.True(t, d.Removed())
	require.Empty(t, s.Registry().Types())
	require.ErrorIs(t, s.Stop(ctx), service.ErrNotStarted)

	// can be started again
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestService_StartFailureRollsBack(t *testing.T) {
	ctx := testlogging.Context(t)
	s := newTestService()

	var events []string

	errBind := errors.New("address already in use")

	err := s.Start(ctx,
		&recordingEndpoint{name: "a", events: &events},
		&recordingEndpoint{name: "b", events: &events},
		&recordingEndpoint{name: "c", events: &events, startErr: errBind},
		&recordingEndpoint{name: "d", events: &events})

	var re *service.RegistrationError

	require.ErrorAs(t, err, &re)
	require.Equal(t, "c", re.Stage)
	require.ErrorIs(t, err, errBind)

	require.Equal(t, []string{"start a", "start b", "fail c", "stop b", "stop a"}, events)
	require.Empty(t, s.Registry().Types())
	require.ErrorIs(t, s.Stop(ctx), service.ErrNotStarted)
}

func TestService_TypeAlreadyRegistered(t *testing.T) {
	ctx := testlogging.Context(t)
	s := newTestService()

	require.NoError(t, s.Registry().RegisterType(dmp.TargetType{}))

	var events []string

	err := s.Start(ctx, &recordingEndpoint{name: "a", events: &events})

	var re *service.RegistrationError

	require.ErrorAs(t, err, &re)
	require.ErrorIs(t, err, target.ErrTypeExists)
	require.Empty(t, events)
}

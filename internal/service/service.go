// Package service implements the lifecycle of the statistics service: registration of the
// statistics target type and of the endpoints that expose device statistics.
package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/dmstat/dmstat/dmp"
	"github.com/dmstat/dmstat/internal/logging"
	"github.com/dmstat/dmstat/target"
)

var log = logging.Module("dmstat/service")

// ErrNotStarted is returned when stopping a service that is not running.
var ErrNotStarted = errors.New("service not started")

// Endpoint exposes the service to the outside world, e.g. an API server or a mount.
type Endpoint interface {
	Name() string
	Start(ctx context.Context, s *Service) error
	Stop(ctx context.Context) error
}

// RegistrationError is returned when the service could not be started.
type RegistrationError struct {
	// Stage is the name of the registration step that failed.
	Stage string
	Err   error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("unable to register %v: %v", e.Stage, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// Options provides options for the service.
type Options struct {
	Registry target.Options
}

// Service owns the device registry and the endpoints exposing it.
type Service struct {
	registry *target.Registry
	tt       target.Type

	mu sync.Mutex
	// +checklocks:mu
	started []Endpoint
	// +checklocks:mu
	running bool
}

// New creates a service that is not yet started.
func New(opts Options) *Service {
	return &Service{
		registry: target.NewRegistry(opts.Registry),
		tt:       dmp.TargetType{},
	}
}

// Registry returns the device registry.
func (s *Service) Registry() *target.Registry {
	return s.registry
}

// Start registers the statistics target type and starts all endpoints in order.
// When any step fails, everything done so far is undone and a *RegistrationError is returned.
func (s *Service) Start(ctx context.Context, endpoints ...Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("service already started")
	}

	if err := s.registry.RegisterType(s.tt); err != nil {
		return &RegistrationError{Stage: "target type " + s.tt.Name(), Err: err}
	}

	for _, ep := range endpoints {
		if err := ep.Start(ctx, s); err != nil {
			s.stopEndpointsLocked(ctx)

			if uerr := s.registry.UnregisterType(s.tt.Name()); uerr != nil {
				log(ctx).Errorf("unable to unregister %v: %v", s.tt.Name(), uerr)
			}

			return &RegistrationError{Stage: ep.Name(), Err: err}
		}

		log(ctx).Debugf("started %v", ep.Name())

		s.started = append(s.started, ep)
	}

	s.running = true

	log(ctx).Infof("%v %v service started", s.tt.Name(), s.tt.Version())

	return nil
}

// +checklocks:s.mu
func (s *Service) stopEndpointsLocked(ctx context.Context) []error {
	var errs []error

	for i := len(s.started) - 1; i >= 0; i-- {
		ep := s.started[i]

		if err := ep.Stop(ctx); err != nil {
			log(ctx).Errorf("error stopping %v: %v", ep.Name(), err)
			errs = append(errs, errors.Wrapf(err, "error stopping %v", ep.Name()))
		}
	}

	s.started = nil

	return errs
}

// Stop removes all devices, stops the endpoints in reverse order and unregisters the target type.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrNotStarted
	}

	var errs []error

	if err := s.registry.RemoveAll(ctx); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, s.stopEndpointsLocked(ctx)...)

	if err := s.registry.UnregisterType(s.tt.Name()); err != nil {
		errs = append(errs, err)
	}

	s.running = false

	log(ctx).Infof("%v service stopped", s.tt.Name())

	return stderrors.Join(errs...)
}

package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/dmstat/dmstat/internal/service"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Endpoint runs the API server for the lifetime of a service.
type Endpoint struct {
	// Listener, when set, is used instead of listening on Address.
	Listener net.Listener

	// Address is host:port or unix:/path/to/socket.
	Address string

	Options Options

	httpServer *http.Server
	listener   net.Listener
	done       chan error
}

// Name implements service.Endpoint.
func (e *Endpoint) Name() string {
	return "API server"
}

// Addr returns the address the server is listening on.
func (e *Endpoint) Addr() net.Addr {
	if e.listener == nil {
		return nil
	}

	return e.listener.Addr()
}

// Listen opens a listener for a given address.
func Listen(address string) (net.Listener, error) {
	if p, ok := strings.CutPrefix(address, "unix:"); ok {
		l, err := net.Listen("unix", p)

		return l, errors.Wrap(err, "listen error")
	}

	l, err := net.Listen("tcp", address)

	return l, errors.Wrap(err, "listen error")
}

// Start implements service.Endpoint.
func (e *Endpoint) Start(ctx context.Context, s *service.Service) error {
	l := e.Listener
	if l == nil {
		var err error

		if l, err = Listen(e.Address); err != nil {
			return err
		}
	}

	m := mux.NewRouter()
	New(s.Registry(), e.Options).SetupHandlers(m)

	e.listener = l
	e.httpServer = &http.Server{
		Handler:           m,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	e.done = make(chan error, 1)

	go func() {
		e.done <- e.httpServer.Serve(l)
	}()

	log(ctx).Infof("API server listening on %v", l.Addr())

	return nil
}

// Stop implements service.Endpoint.
func (e *Endpoint) Stop(ctx context.Context) error {
	if e.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := e.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "unable to shut down API server")
	}

	err := <-e.done
	e.httpServer = nil

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "API server error")
	}

	return nil
}

var _ service.Endpoint = (*Endpoint)(nil)

// Package server implements the dmstat API server handlers.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmstat/dmstat/internal/logging"
	"github.com/dmstat/dmstat/internal/serverapi"
	"github.com/dmstat/dmstat/target"
)

var log = logging.Module("dmstat/server")

type apiRequestFunc func(ctx context.Context, r *http.Request, body []byte) (interface{}, *apiError)

// textResponse is written verbatim as text/plain.
type textResponse string

// Options encompasses all API server options.
type Options struct {
	LogRequests bool

	// Gatherer, when set, is exposed at /metrics.
	Gatherer prometheus.Gatherer

	// SetupExtraHandlers registers additional handlers, such as pprof.
	SetupExtraHandlers func(m *mux.Router)
}

// Server exposes the devices of a registry over HTTP.
type Server struct {
	registry *target.Registry
	options  Options
}

// New creates a server for devices in a given registry.
func New(r *target.Registry, options Options) *Server {
	return &Server{
		registry: r,
		options:  options,
	}
}

// SetupHandlers registers HTTP API handlers.
func (s *Server) SetupHandlers(m *mux.Router) {
	m.HandleFunc("/api/v1/targets", s.handle(s.handleTargetList)).Methods(http.MethodGet)
	m.HandleFunc("/api/v1/devices", s.handle(s.handleDeviceList)).Methods(http.MethodGet)
	m.HandleFunc("/api/v1/devices", s.handle(s.handleDeviceCreate)).Methods(http.MethodPost)
	m.HandleFunc("/api/v1/devices/{name}", s.handle(s.handleDeviceGet)).Methods(http.MethodGet)
	m.HandleFunc("/api/v1/devices/{name}", s.handle(s.handleDeviceDelete)).Methods(http.MethodDelete)
	m.HandleFunc("/api/v1/devices/{name}/stat", s.handle(s.handleDeviceStat)).Methods(http.MethodGet)

	if s.options.Gatherer != nil {
		m.Handle("/metrics", promhttp.HandlerFor(s.options.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	if s.options.SetupExtraHandlers != nil {
		s.options.SetupExtraHandlers(m)
	}
}

func (s *Server) handle(f apiRequestFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, berr := io.ReadAll(r.Body)
		if berr != nil {
			http.Error(w, "error reading request body", http.StatusInternalServerError)
			return
		}

		ctx := r.Context()

		if s.options.LogRequests {
			log(ctx).Debugf("request %v %v (%v bytes)", r.Method, r.URL, len(body))
		}

		e := json.NewEncoder(w)
		e.SetIndent("", "  ")

		v, err := f(ctx, r, body)
		if err == nil {
			if t, ok := v.(textResponse); ok {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")

				if _, err := io.WriteString(w, string(t)); err != nil {
					log(ctx).Errorf("error writing response: %v", err)
				}

				return
			}

			w.Header().Set("Content-Type", "application/json")

			if err := e.Encode(v); err != nil {
				log(ctx).Errorf("error encoding response: %v", err)
			}

			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(err.httpErrorCode)

		if s.options.LogRequests {
			log(ctx).Debugf("%v: error code %v message %v", r.URL, err.apiErrorCode, err.message)
		}

		_ = e.Encode(&serverapi.ErrorResponse{
			Code:  err.apiErrorCode,
			Error: err.message,
		})
	}
}

func (s *Server) handleTargetList(ctx context.Context, r *http.Request, body []byte) (interface{}, *apiError) {
	resp := &serverapi.TargetTypeList{
		Items: []*serverapi.TargetTypeInfo{},
	}

	for _, t := range s.registry.Types() {
		resp.Items = append(resp.Items, &serverapi.TargetTypeInfo{
			Name:    t.Name(),
			Version: t.Version().String(),
		})
	}

	return resp, nil
}

package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dmstat/dmstat/dmp"
	"github.com/dmstat/dmstat/internal/serverapi"
	"github.com/dmstat/dmstat/internal/stats"
	"github.com/dmstat/dmstat/target"
)

type statsProvider interface {
	Stats() stats.Snapshot
}

func deviceInfo(d *target.Device) *serverapi.DeviceInfo {
	spec := d.Spec()

	di := &serverapi.DeviceInfo{
		Name:     d.Name(),
		ID:       d.ID().String(),
		Type:     spec.Type,
		Backing:  spec.Backing,
		Device:   d.BackingName(),
		Size:     d.Size(),
		ReadOnly: spec.ReadOnly,
		Created:  d.CreatedAt(),
	}

	if sp, ok := d.Mapper().(statsProvider); ok {
		snap := sp.Stats()
		di.Stats = &snap
	}

	return di
}

func (s *Server) handleDeviceList(ctx context.Context, r *http.Request, body []byte) (interface{}, *apiError) {
	resp := &serverapi.DeviceList{
		Items: []*serverapi.DeviceInfo{},
	}

	for _, d := range s.registry.Devices() {
		resp.Items = append(resp.Items, deviceInfo(d))
	}

	return resp, nil
}

func (s *Server) handleDeviceCreate(ctx context.Context, r *http.Request, body []byte) (interface{}, *apiError) {
	req := &serverapi.CreateDeviceRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, unableToDecodeRequest(err)
	}

	if req.Backing == "" {
		return nil, requestError(serverapi.ErrorInvalidArgument, "backing device not specified")
	}

	if req.Type == "" {
		req.Type = dmp.TypeName
	}

	d, err := s.registry.CreateDevice(ctx, target.DeviceSpec{
		Name:       req.Name,
		Type:       req.Type,
		Backing:    req.Backing,
		CreateSize: req.CreateSize,
		ReadOnly:   req.ReadOnly,
		Args:       req.Args,
	})
	if err != nil {
		return nil, deviceError(err)
	}

	return deviceInfo(d), nil
}

func (s *Server) handleDeviceGet(ctx context.Context, r *http.Request, body []byte) (interface{}, *apiError) {
	name := mux.Vars(r)["name"]

	d, ok := s.registry.Device(name)
	if !ok {
		return nil, notFoundError("device not found: " + name)
	}

	return deviceInfo(d), nil
}

func (s *Server) handleDeviceDelete(ctx context.Context, r *http.Request, body []byte) (interface{}, *apiError) {
	if err := s.registry.RemoveDevice(ctx, mux.Vars(r)["name"]); err != nil {
		return nil, deviceError(err)
	}

	return &serverapi.Empty{}, nil
}

func (s *Server) handleDeviceStat(ctx context.Context, r *http.Request, body []byte) (interface{}, *apiError) {
	name := mux.Vars(r)["name"]

	d, ok := s.registry.Device(name)
	if !ok {
		return nil, notFoundError("device not found: " + name)
	}

	st, ok := d.Status()
	if !ok {
		return nil, notFoundError("device does not report statistics: " + name)
	}

	return textResponse(st), nil
}

package server_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dmstat/dmstat/blockdev"
	"github.com/dmstat/dmstat/dmp"
	"github.com/dmstat/dmstat/internal/apiclient"
	"github.com/dmstat/dmstat/internal/devtesting"
	"github.com/dmstat/dmstat/internal/metrics"
	"github.com/dmstat/dmstat/internal/server"
	"github.com/dmstat/dmstat/internal/serverapi"
	"github.com/dmstat/dmstat/internal/service"
	"github.com/dmstat/dmstat/internal/testlogging"
	"github.com/dmstat/dmstat/target"
)

const testDeviceSize = 1 << 16

func startTestServer(t *testing.T, maxDevices int) (*service.Service, *apiclient.APIClient) {
	t.Helper()

	ctx := testlogging.Context(t)

	svc := service.New(service.Options{
		Registry: target.Options{
			MaxDevices: maxDevices,
			Open: func(ctx context.Context, spec target.DeviceSpec) (blockdev.Device, error) {
				return devtesting.NewMemDevice(testDeviceSize), nil
			},
		},
	})

	reg := prometheus.NewRegistry()
	ep := &server.Endpoint{
		Address: "127.0.0.1:0",
		Options: server.Options{LogRequests: true, Gatherer: reg},
	}

	require.NoError(t, svc.Start(ctx, &metrics.Endpoint{Registerer: reg}, ep))

	t.Cleanup(func() {
		require.NoError(t, svc.Stop(ctx))
	})

	cli, err := apiclient.NewAPIClient(apiclient.Options{
		BaseURL:     "http://" + ep.Addr().String(),
		LogRequests: true,
	})
	require.NoError(t, err)

	return svc, cli
}

func requireHTTPStatus(t *testing.T, err error, want int) {
	t.Helper()

	var herr apiclient.HTTPStatusError

	require.True(t, errors.As(err, &herr), "unexpected error %v", err)
	require.Equal(t, want, herr.HTTPStatusCode)
}

func TestServerDevices(t *testing.T) {
	ctx := testlogging.Context(t)
	svc, cli := startTestServer(t, 0)

	list, err := serverapi.ListDevices(ctx, cli)
	require.NoError(t, err)
	require.Empty(t, list.Items)

	di, err := serverapi.CreateDevice(ctx, cli, &serverapi.CreateDeviceRequest{
		Name:    "vol0",
		Backing: "/dev/null",
	})
	require.NoError(t, err)
	require.Equal(t, "vol0", di.Name)
	require.Equal(t, dmp.TypeName, di.Type)
	require.Equal(t, int64(testDeviceSize), di.Size)
	require.NotEmpty(t, di.ID)
	require.NotNil(t, di.Stats)
	require.Zero(t, di.Stats.ReadCount)

	_, err = serverapi.CreateDevice(ctx, cli, &serverapi.CreateDeviceRequest{
		Name:    "vol1",
		Backing: "/dev/null",
	})
	require.NoError(t, err)

	d, ok := svc.Registry().Device("vol0")
	require.True(t, ok)

	_, err = d.WriteAt(make([]byte, 4096), 0)
	require.NoError(t, err)

	_, err = d.ReadAt(make([]byte, 8192), 0)
	require.NoError(t, err)

	di, err = serverapi.GetDevice(ctx, cli, "vol0")
	require.NoError(t, err)
	require.Equal(t, uint64(1), di.Stats.ReadCount)
	require.Equal(t, uint64(8192), di.Stats.ReadBytes)
	require.Equal(t, uint64(1), di.Stats.WriteCount)
	require.Equal(t, uint64(4096), di.Stats.WriteBytes)

	st, err := serverapi.DeviceStat(ctx, cli, "vol0")
	require.NoError(t, err)
	require.Equal(t,
		"read:\n  reqs: 1\n  avg size: 8192\n"+
			"write:\n  reqs: 1\n  avg size: 4096\n"+
			"total:\n  reqs: 2\n  avg size: 6144\n", st)

	st, err = serverapi.DeviceStat(ctx, cli, "vol1")
	require.NoError(t, err)
	require.Equal(t,
		"read:\n  reqs: 0\n  avg size: 0\n"+
			"write:\n  reqs: 0\n  avg size: 0\n"+
			"total:\n  reqs: 0\n  avg size: 0\n", st)

	list, err = serverapi.ListDevices(ctx, cli)
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	require.Equal(t, "vol0", list.Items[0].Name)
	require.Equal(t, "vol1", list.Items[1].Name)

	require.NoError(t, serverapi.RemoveDevice(ctx, cli, "vol0"))
	require.ErrorIs(t, serverapi.RemoveDevice(ctx, cli, "vol0"), serverapi.ErrDeviceNotFound)

	_, err = serverapi.GetDevice(ctx, cli, "vol0")
	require.ErrorIs(t, err, serverapi.ErrDeviceNotFound)

	_, err = serverapi.DeviceStat(ctx, cli, "vol0")
	require.ErrorIs(t, err, serverapi.ErrDeviceNotFound)

	require.True(t, d.Removed())
}

func TestServerErrors(t *testing.T) {
	ctx := testlogging.Context(t)
	_, cli := startTestServer(t, 1)

	_, err := serverapi.CreateDevice(ctx, cli, &serverapi.CreateDeviceRequest{Name: "vol0", Backing: "/dev/null"})
	require.NoError(t, err)

	_, err = serverapi.CreateDevice(ctx, cli, &serverapi.CreateDeviceRequest{Name: "vol0", Backing: "/dev/null"})
	requireHTTPStatus(t, err, http.StatusConflict)

	_, err = serverapi.CreateDevice(ctx, cli, &serverapi.CreateDeviceRequest{Name: "vol1", Backing: "/dev/null"})
	requireHTTPStatus(t, err, http.StatusInsufficientStorage)

	_, err = serverapi.CreateDevice(ctx, cli, &serverapi.CreateDeviceRequest{Name: "../etc", Backing: "/dev/null"})
	requireHTTPStatus(t, err, http.StatusBadRequest)

	_, err = serverapi.CreateDevice(ctx, cli, &serverapi.CreateDeviceRequest{Name: "vol2", Type: "no-such-target", Backing: "/dev/null"})
	requireHTTPStatus(t, err, http.StatusBadRequest)

	_, err = serverapi.CreateDevice(ctx, cli, &serverapi.CreateDeviceRequest{Name: "vol2"})
	requireHTTPStatus(t, err, http.StatusBadRequest)

	var resp serverapi.Empty

	err = cli.Post(ctx, "devices", "not-an-object", &resp)
	requireHTTPStatus(t, err, http.StatusBadRequest)
}

func TestServerTargetsAndMetrics(t *testing.T) {
	ctx := testlogging.Context(t)
	svc, cli := startTestServer(t, 0)

	types, err := serverapi.ListTargetTypes(ctx, cli)
	require.NoError(t, err)
	require.Len(t, types.Items, 1)
	require.Equal(t, dmp.TypeName, types.Items[0].Name)
	require.Equal(t, "1.0.0", types.Items[0].Version)

	_, err = serverapi.CreateDevice(ctx, cli, &serverapi.CreateDeviceRequest{Name: "vol0", Backing: "/dev/null"})
	require.NoError(t, err)

	d, ok := svc.Registry().Device("vol0")
	require.True(t, ok)

	_, err = d.WriteAt(make([]byte, 512), 0)
	require.NoError(t, err)

	var b []byte
	require.NoError(t, cli.Get(ctx, "/metrics", nil, &b))

	text := string(b)
	require.True(t, strings.Contains(text, `dmstat_write_requests_total{device="vol0"} 1`), text)
	require.True(t, strings.Contains(text, `dmstat_write_bytes_total{device="vol0"} 512`), text)
	require.True(t, strings.Contains(text, `dmstat_read_requests_total{device="vol0"} 0`), text)
}

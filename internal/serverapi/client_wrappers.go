package serverapi

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"github.com/dmstat/dmstat/internal/apiclient"
)

// ErrDeviceNotFound is returned by client wrappers when the device does not exist.
var ErrDeviceNotFound = errors.New("device not found")

func devicePath(name string) string {
	return "devices/" + url.PathEscape(name)
}

// ListDevices lists devices managed by the server.
func ListDevices(ctx context.Context, c *apiclient.APIClient) (*DeviceList, error) {
	resp := &DeviceList{}
	if err := c.Get(ctx, "devices", nil, resp); err != nil {
		return nil, errors.Wrap(err, "ListDevices")
	}

	return resp, nil
}

// GetDevice returns information about a single device.
func GetDevice(ctx context.Context, c *apiclient.APIClient, name string) (*DeviceInfo, error) {
	resp := &DeviceInfo{}
	if err := c.Get(ctx, devicePath(name), ErrDeviceNotFound, resp); err != nil {
		return nil, errors.Wrap(err, "GetDevice")
	}

	return resp, nil
}

// CreateDevice creates a new device.
func CreateDevice(ctx context.Context, c *apiclient.APIClient, req *CreateDeviceRequest) (*DeviceInfo, error) {
	resp := &DeviceInfo{}
	if err := c.Post(ctx, "devices", req, resp); err != nil {
		return nil, errors.Wrap(err, "CreateDevice")
	}

	return resp, nil
}

// RemoveDevice removes a device.
func RemoveDevice(ctx context.Context, c *apiclient.APIClient, name string) error {
	if err := c.Delete(ctx, devicePath(name), ErrDeviceNotFound, nil, &Empty{}); err != nil {
		return errors.Wrap(err, "RemoveDevice")
	}

	return nil
}

// DeviceStat returns the statistics report of a device.
func DeviceStat(ctx context.Context, c *apiclient.APIClient, name string) (string, error) {
	var b []byte
	if err := c.Get(ctx, devicePath(name)+"/stat", ErrDeviceNotFound, &b); err != nil {
		return "", errors.Wrap(err, "DeviceStat")
	}

	return string(b), nil
}

// ListTargetTypes lists target types registered with the server.
func ListTargetTypes(ctx context.Context, c *apiclient.APIClient) (*TargetTypeList, error) {
	resp := &TargetTypeList{}
	if err := c.Get(ctx, "targets", nil, resp); err != nil {
		return nil, errors.Wrap(err, "ListTargetTypes")
	}

	return resp, nil
}

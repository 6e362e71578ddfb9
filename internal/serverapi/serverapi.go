// Package serverapi contains types used in the device API.
package serverapi

import (
	"time"

	"github.com/dmstat/dmstat/internal/stats"
)

// APIErrorCode indicates machine-readable error code returned in API responses.
type APIErrorCode string

// Supported error codes.
const (
	ErrorInternal         APIErrorCode = "INTERNAL"
	ErrorMalformedRequest APIErrorCode = "MALFORMED_REQUEST"
	ErrorInvalidArgument  APIErrorCode = "INVALID_ARGUMENT"
	ErrorNotFound         APIErrorCode = "NOT_FOUND"
	ErrorAlreadyExists    APIErrorCode = "ALREADY_EXISTS"
	ErrorAllocation       APIErrorCode = "ALLOCATION_FAILED"
)

// ErrorResponse represents error response.
type ErrorResponse struct {
	Code  APIErrorCode `json:"code"`
	Error string       `json:"error"`
}

// Empty represents empty request/response.
type Empty struct{}

// CreateDeviceRequest contains request to create a device.
type CreateDeviceRequest struct {
	Name       string   `json:"name"`
	Type       string   `json:"type,omitempty"`
	Backing    string   `json:"backing"`
	CreateSize int64    `json:"createSize,omitempty"`
	ReadOnly   bool     `json:"readOnly,omitempty"`
	Args       []string `json:"args,omitempty"`
}

// DeviceInfo describes a device.
type DeviceInfo struct {
	Name     string          `json:"name"`
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Backing  string          `json:"backing"`
	Device   string          `json:"device"`
	Size     int64           `json:"size"`
	ReadOnly bool            `json:"readOnly,omitempty"`
	Created  time.Time       `json:"created"`
	Stats    *stats.Snapshot `json:"stats,omitempty"`
}

// DeviceList contains a list of devices.
type DeviceList struct {
	Items []*DeviceInfo `json:"items"`
}

// TargetTypeInfo describes a registered target type.
type TargetTypeInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// TargetTypeList contains a list of registered target types.
type TargetTypeList struct {
	Items []*TargetTypeInfo `json:"items"`
}

// Package apiclient implements a client for connecting to the dmstat HTTP API server.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	net_url "net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/dmstat/dmstat/internal/clock"
	"github.com/dmstat/dmstat/internal/logging"
)

var log = logging.Module("dmstat/client")

// APIClient provides helper methods for communicating with the API server.
type APIClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Get is a helper that performs HTTP GET on a URL with the specified suffix and decodes the response
// onto respPayload which must be a pointer to byte slice or JSON-serializable structure.
func (c *APIClient) Get(ctx context.Context, urlSuffix string, onNotFound error, respPayload interface{}) error {
	return c.runRequest(ctx, http.MethodGet, c.actualURL(urlSuffix), onNotFound, nil, respPayload)
}

// Post is a helper that performs HTTP POST on a URL with the specified body from reqPayload and decodes the response
// onto respPayload which must be a pointer to byte slice or JSON-serializable structure.
func (c *APIClient) Post(ctx context.Context, urlSuffix string, reqPayload, respPayload interface{}) error {
	return c.runRequest(ctx, http.MethodPost, c.actualURL(urlSuffix), nil, reqPayload, respPayload)
}

// Delete is a helper that performs HTTP DELETE on a URL with the specified body from reqPayload and decodes the response
// onto respPayload which must be a pointer to byte slice or JSON-serializable structure.
func (c *APIClient) Delete(ctx context.Context, urlSuffix string, onNotFound error, reqPayload, respPayload interface{}) error {
	return c.runRequest(ctx, http.MethodDelete, c.actualURL(urlSuffix), onNotFound, reqPayload, respPayload)
}

func (c *APIClient) actualURL(suffix string) string {
	if strings.HasPrefix(suffix, "/") {
		return c.BaseURL + suffix
	}

	return c.BaseURL + "/api/v1/" + suffix
}

func (c *APIClient) runRequest(ctx context.Context, method, url string, notFoundError error, reqPayload, respPayload interface{}) error {
	payload, contentType, err := requestReader(reqPayload)
	if err != nil {
		return errors.Wrap(err, "error getting reader")
	}

	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return errors.Wrap(err, "error creating request")
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "error running http request")
	}

	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound && notFoundError != nil {
		return notFoundError
	}

	return decodeResponse(resp, respPayload)
}

func requestReader(reqPayload interface{}) (io.Reader, string, error) {
	if reqPayload == nil {
		return nil, "", nil
	}

	var b bytes.Buffer
	if err := json.NewEncoder(&b).Encode(reqPayload); err != nil {
		return nil, "", errors.Wrap(err, "unable to serialize JSON")
	}

	return bytes.NewReader(b.Bytes()), "application/json", nil
}

// HTTPStatusError encapsulates HTTP status error.
type HTTPStatusError struct {
	HTTPStatusCode int
	ErrorMessage   string
}

func (e HTTPStatusError) Error() string {
	return e.ErrorMessage
}

// serverErrorResponse is a structure that can decode the Error field
// of a serverapi.ErrorResponse received from the API server.
type serverErrorResponse struct {
	Error string `json:"error"`
}

func respToErrorMessage(resp *http.Response) string {
	errResp := serverErrorResponse{}

	err := json.NewDecoder(resp.Body).Decode(&errResp)
	if err != nil {
		return resp.Status
	}

	return fmt.Sprintf("%s: %s", resp.Status, errResp.Error)
}

func decodeResponse(resp *http.Response, respPayload interface{}) error {
	if resp.StatusCode != http.StatusOK {
		return HTTPStatusError{resp.StatusCode, respToErrorMessage(resp)}
	}

	if respPayload == nil {
		return nil
	}

	if b, ok := respPayload.(*[]byte); ok {
		v, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "unable to read response")
		}

		*b = v
	} else if err := json.NewDecoder(resp.Body).Decode(respPayload); err != nil {
		return errors.Wrap(err, "unable to parse JSON response")
	}

	return nil
}

// Options encapsulates all optional parameters for APIClient.
type Options struct {
	// BaseURL is either http(s)://host:port or unix+http://path/to/socket.
	BaseURL string

	LogRequests bool
}

// NewAPIClient creates a client for connecting to the API server.
func NewAPIClient(options Options) (*APIClient, error) {
	var transport http.RoundTripper = http.DefaultTransport

	uri := strings.TrimSuffix(options.BaseURL, "/")

	if strings.HasPrefix(options.BaseURL, "unix+https://") || strings.HasPrefix(options.BaseURL, "unix+http://") {
		u, err := net_url.Parse(strings.TrimPrefix(options.BaseURL, "unix+"))
		if err != nil {
			return nil, errors.Wrap(err, "invalid server address")
		}

		uri = u.Scheme + "://localhost"
		tp, _ := transport.(*http.Transport)
		tp = tp.Clone()
		tp.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer

			conn, err := d.DialContext(ctx, "unix", u.Path)

			return conn, errors.Wrap(err, "unable to connect to socket: "+options.BaseURL)
		}

		transport = tp
	}

	if options.LogRequests {
		transport = loggingTransport{transport}
	}

	return &APIClient{
		BaseURL:    uri,
		HTTPClient: &http.Client{Transport: transport},
	}, nil
}

type loggingTransport struct {
	base http.RoundTripper
}

func (t loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := clock.Now()
	resp, err := t.base.RoundTrip(req)
	dur := clock.Since(start)

	if err != nil {
		log(req.Context()).Debugf("%v %v took %v and failed with %v", req.Method, req.URL, dur, err)
		return nil, errors.Wrap(err, "round-trip error")
	}

	log(req.Context()).Debugf("%v %v took %v and returned %v", req.Method, req.URL, dur, resp.Status)

	return resp, nil
}

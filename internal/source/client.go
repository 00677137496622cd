package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/oshokin/alert-relay/internal/domain/alarm"
	"github.com/oshokin/alert-relay/internal/version"
)

// maxBodyBytes caps how much of a response body is decoded.
const maxBodyBytes = 8 << 20

var (
	// ErrUnreachable marks any failure to read a source.
	ErrUnreachable = errors.New("source unreachable")
	// errUnsupportedKind is returned for a source kind without a client.
	errUnsupportedKind = errors.New("unsupported source kind")
	// errBadStatus is returned for non-200 responses.
	errBadStatus = errors.New("unexpected http status")
)

// Report is what a source returned for one fetch.
type Report struct {
	// Hostname is the name the source reported for itself.
	Hostname string
	// Alarms are the active alarms sorted by id.
	Alarms []alarm.Record
}

// Client fetches the raw alarm state of one source.
type Client interface {
	Fetch(ctx context.Context, src alarm.Source) (*Report, error)
}

// Router dispatches fetches to the client registered for the source kind.
type Router struct {
	clients map[alarm.Kind]Client
}

// NewRouter builds a router with netdata and prometheus clients sharing one
// HTTP client bounded by timeout.
func NewRouter(timeout time.Duration) *Router {
	httpClient := NewHTTPClient(timeout)

	return &Router{
		clients: map[alarm.Kind]Client{
			alarm.KindNetdata:    NewNetdataClient(httpClient),
			alarm.KindPrometheus: NewPrometheusClient(httpClient),
		},
	}
}

// Fetch implements Client.
func (r *Router) Fetch(ctx context.Context, src alarm.Source) (*Report, error) {
	client, found := r.clients[src.Kind]
	if !found {
		return nil, fmt.Errorf("%w: %s: %w %q", ErrUnreachable, src.Label(), errUnsupportedKind, src.Kind)
	}

	return client.Fetch(ctx, src)
}

// userAgentRoundTripper stamps every request with the relay user agent.
type userAgentRoundTripper struct {
	base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", version.UserAgent())

	return t.base.RoundTrip(req)
}

// NewHTTPClient returns an HTTP client with an overall timeout and the relay user agent.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &userAgentRoundTripper{base: http.DefaultTransport},
		Timeout:   timeout,
	}
}

// get performs a GET and returns the response when the status is 200.
// The caller closes the body.
func get(ctx context.Context, client *http.Client, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()

		return nil, fmt.Errorf("%w: %d", errBadStatus, resp.StatusCode)
	}

	return resp, nil
}

// unreachable wraps err as an ErrUnreachable for src.
func unreachable(src alarm.Source, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnreachable, src.Label(), err)
}

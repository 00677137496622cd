//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/alert-relay/internal/api/grpc/status"
	"github.com/oshokin/alert-relay/internal/config"
)

// Client wraps the gRPC health client of a running relay.
type Client struct {
	// conn is the underlying gRPC connection to the relay.
	conn *grpc.ClientConn
	// api is the generated health client.
	api healthpb.HealthClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Status summarizes what a relay reports about itself.
type Status struct {
	// Running is true while the relay's poll loop is alive.
	Running bool
	// AlarmsClear is true when the last cycle found nothing wrong.
	AlarmsClear bool
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial creates a client for the relay status server at address.
// It uses insecure transport credentials; expose the status port on trusted networks only.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial relay status: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         healthpb.NewHealthClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Status queries both health services of the relay.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	running, err := c.check(ctx, status.ServiceRelay)
	if err != nil {
		return nil, err
	}

	alarmsClear, err := c.check(ctx, status.ServiceAlarms)
	if err != nil {
		return nil, err
	}

	return &Status{
		Running:     running,
		AlarmsClear: alarmsClear,
	}, nil
}

// check returns whether service reports SERVING.
func (c *Client) check(ctx context.Context, service string) (bool, error) {
	callCtx, cancel := CallContext(ctx, c.callTimeout)
	defer cancel()

	resp, err := c.api.Check(callCtx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return false, fmt.Errorf("check %q: %w", service, err)
	}

	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

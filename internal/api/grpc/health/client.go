package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// defaultCallTimeout bounds a call when no timeout option is given.
const defaultCallTimeout = 5 * time.Second

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Client wraps the generated health client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the daemon.
	conn *grpc.ClientConn
	// api is the generated health client.
	api healthpb.HealthClient
	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// Dial creates a client for the daemon health endpoint. The endpoint is
// meant for the local host or a trusted network, so transport is plaintext.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial health endpoint: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         healthpb.NewHealthClient(conn),
		callTimeout: defaultCallTimeout,
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

// Check returns the status of one entry; "" is the overall status.
func (c *Client) Check(ctx context.Context, service string) (*healthpb.HealthCheckResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.Check(callCtx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return nil, fmt.Errorf("check %q: %w", service, err)
	}

	return resp, nil
}

// Report is the status of the overall entry and every component.
type Report struct {
	// Overall is the status of the "" entry.
	Overall healthpb.HealthCheckResponse_ServingStatus
	// Components maps component names to their status.
	Components map[string]healthpb.HealthCheckResponse_ServingStatus
}

// CheckAll queries the overall entry and every known component.
func (c *Client) CheckAll(ctx context.Context) (*Report, error) {
	overall, err := c.Check(ctx, "")
	if err != nil {
		return nil, err
	}

	report := &Report{
		Overall:    overall.GetStatus(),
		Components: make(map[string]healthpb.HealthCheckResponse_ServingStatus, len(Components)),
	}

	for _, component := range Components {
		resp, checkErr := c.Check(ctx, ServicePrefix+component)
		if checkErr != nil {
			return nil, checkErr
		}

		report.Components[component] = resp.GetStatus()
	}

	return report, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

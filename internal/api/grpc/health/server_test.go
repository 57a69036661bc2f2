package health

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startServer(t *testing.T) (*Reporter, *Client) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	reporter := NewReporter()
	served := make(chan error, 1)

	go func() {
		served <- reporter.ServeListener(ctx, lis)
	}()

	client, err := Dial(ctx, lis.Addr().String())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		cancel()
		require.NoError(t, <-served)
	})

	return reporter, client
}

// TestReporter_Overall follows component transitions in the overall status.
func TestReporter_Overall(t *testing.T) {
	t.Parallel()

	reporter, client := startServer(t)
	ctx := context.Background()

	report, err := client.CheckAll(ctx)
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, report.Overall)
	require.Len(t, report.Components, len(Components))

	reporter.SetHealthy("camera", false)

	report, err = client.CheckAll(ctx)
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, report.Overall)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, report.Components["camera"])
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, report.Components["sensor"])

	reporter.SetHealthy("camera", true)

	resp, err := client.Check(ctx, "")
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

// TestClient_UnknownService surfaces NotFound for unregistered entries.
func TestClient_UnknownService(t *testing.T) {
	t.Parallel()

	_, client := startServer(t)

	_, err := client.Check(context.Background(), "smartlock.doorbell")
	require.Error(t, err)
}

// TestDial_RequiresAddress rejects an empty address.
func TestDial_RequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := Dial(context.Background(), "")
	require.ErrorIs(t, err, errAddressRequired)
}

package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/smart-lock/internal/logger"
)

// ServicePrefix namespaces component entries, e.g. "smartlock.sensor".
const ServicePrefix = "smartlock."

// Components lists the entries registered at startup.
var Components = []string{"sensor", "camera", "channel"}

// Reporter tracks component health and publishes it through the health service.
// The overall entry is SERVING only while every component is.
type Reporter struct {
	// server is the standard health implementation.
	server *grpchealth.Server
	// healthy holds the last state per component.
	healthy map[string]bool
	// mu protects healthy.
	mu sync.Mutex
}

// NewReporter registers every known component as SERVING.
func NewReporter() *Reporter {
	r := &Reporter{
		server:  grpchealth.NewServer(),
		healthy: make(map[string]bool, len(Components)),
	}

	for _, component := range Components {
		r.healthy[component] = true
		r.server.SetServingStatus(ServicePrefix+component, healthpb.HealthCheckResponse_SERVING)
	}

	r.server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return r
}

// SetHealthy records the state of component. Repeated states are ignored.
func (r *Reporter) SetHealthy(component string, healthy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if previous, ok := r.healthy[component]; ok && previous == healthy {
		return
	}

	r.healthy[component] = healthy
	r.server.SetServingStatus(ServicePrefix+component, servingStatus(healthy))

	overall := true
	for _, ok := range r.healthy {
		overall = overall && ok
	}

	r.server.SetServingStatus("", servingStatus(overall))
}

// Shutdown reports NOT_SERVING for every entry.
func (r *Reporter) Shutdown() {
	r.server.Shutdown()
}

// Register attaches the health service to s.
func (r *Reporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, r.server)
}

// Serve runs a gRPC server with the health service on address until ctx is canceled.
func (r *Reporter) Serve(ctx context.Context, address string) error {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	return r.ServeListener(ctx, lis)
}

// ServeListener is Serve on an existing listener.
func (r *Reporter) ServeListener(ctx context.Context, lis net.Listener) error {
	grpcServer := grpc.NewServer()
	r.Register(grpcServer)

	logger.InfoKV(ctx, "Health endpoint listening", "listen_address", lis.Addr().String())

	// Done is closed after GracefulStop so Serve returns only once the server is down.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		r.Shutdown()
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done

	return nil
}

func servingStatus(healthy bool) healthpb.HealthCheckResponse_ServingStatus {
	if healthy {
		return healthpb.HealthCheckResponse_SERVING
	}

	return healthpb.HealthCheckResponse_NOT_SERVING
}

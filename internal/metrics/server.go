package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/oshokin/smart-lock/internal/logger"
)

// shutdownTimeout bounds the graceful stop of the metrics listener.
const shutdownTimeout = 3 * time.Second

// Serve exposes /metrics on address until ctx is canceled.
func (m *Metrics) Serve(ctx context.Context, address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	//nolint:exhaustruct // Remaining server fields keep their defaults.
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		_ = server.Shutdown(shutdownCtx) //nolint:contextcheck // Shutdown must outlive the canceled parent.
	}()

	logger.InfoKV(ctx, "Metrics endpoint listening", "listen_address", lis.Addr().String())

	if err = server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}

	<-done

	return nil
}

package integration

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/smart-lock/internal/api/grpc/health"
	"github.com/oshokin/smart-lock/internal/domain/lock"
	"github.com/oshokin/smart-lock/internal/domain/presence"
)

// startHealth serves a reporter on a free port until the test ends.
func startHealth(t *testing.T) (*health.Reporter, string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	reporter := health.NewReporter()
	served := make(chan error, 1)

	go func() {
		served <- reporter.ServeListener(ctx, lis)
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-served)
	})

	return reporter, lis.Addr().String()
}

// constantSensor always reports the same distance.
type constantSensor float64

func (s constantSensor) Measure(context.Context) (float64, error) {
	return float64(s), nil
}

type stillCamera struct{}

func (stillCamera) Capture(context.Context) ([]byte, error) {
	return []byte("jpeg"), nil
}

type knownFace struct{}

func (knownFace) Classify(context.Context, []byte) (presence.Classification, error) {
	return presence.Classification{Label: "Alice", Confidence: 0.97}, nil
}

type servoLog struct {
	mu        sync.Mutex
	positions []lock.Position
}

func (s *servoLog) Set(_ context.Context, position lock.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions = append(s.positions, position)

	return nil
}

func (s *servoLog) Positions() []lock.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]lock.Position(nil), s.positions...)
}

type inbox struct {
	mu     sync.Mutex
	alerts []presence.Alert
}

func (i *inbox) Notify(_ context.Context, alert presence.Alert) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.alerts = append(i.alerts, alert)

	return nil
}

type discardTelemetry struct{}

func (discardTelemetry) PublishTelemetry(context.Context, presence.TelemetryEvent) error {
	return nil
}

// manualClock advances only when told to.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

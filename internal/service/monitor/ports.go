package monitor

import (
	"context"

	"github.com/oshokin/smart-lock/internal/domain/presence"
)

// Health component names reported by the loop.
const (
	ComponentSensor  = "sensor"
	ComponentCamera  = "camera"
	ComponentChannel = "channel"
)

// Sensor measures the distance to the nearest object in inches. Implementations
// bound their own wait and wrap presence.ErrSensorTimeout on expiry.
type Sensor interface {
	Measure(ctx context.Context) (float64, error)
}

// Camera captures one still image as JPEG bytes.
type Camera interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Classifier returns the most likely label of an image with its raw score.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (presence.Classification, error)
}

// Notifier delivers an alert to the owner.
type Notifier interface {
	Notify(ctx context.Context, alert presence.Alert) error
}

// TelemetryPublisher publishes occupancy, fire and forget.
type TelemetryPublisher interface {
	PublishTelemetry(ctx context.Context, event presence.TelemetryEvent) error
}

// EpisodeRecorder persists closed episodes.
type EpisodeRecorder interface {
	Record(ctx context.Context, episode presence.Episode) error
}

// HealthReporter receives component health transitions.
type HealthReporter interface {
	SetHealthy(component string, healthy bool)
}

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/smart-lock/internal/domain/lock"
	"github.com/oshokin/smart-lock/internal/domain/presence"
	"github.com/oshokin/smart-lock/internal/logger"
	"github.com/oshokin/smart-lock/internal/metrics"
)

// DefaultImageName is the attachment name used when none is configured.
const DefaultImageName = "captured_image.jpg"

var (
	// errMissingPort is returned by New when a required collaborator is nil.
	errMissingPort = errors.New("missing collaborator")
	// errInvalidPollInterval is returned by New for a non-positive poll interval.
	errInvalidPollInterval = errors.New("poll interval must be positive")
	// errPanic wraps a panic recovered from a collaborator.
	errPanic = errors.New("collaborator panicked")
)

// Options wires the collaborators of a Monitor.
type Options struct {
	// Sensor measures visitor distance. Required.
	Sensor Sensor
	// Camera captures the visitor image. Required.
	Camera Camera
	// Classifier labels the captured image. Required.
	Classifier Classifier
	// Lock moves the lock; share it with every other writer. Required.
	Lock lock.Actuator
	// Notifier alerts the owner. Required.
	Notifier Notifier
	// Telemetry publishes occupancy. Required.
	Telemetry TelemetryPublisher
	// Recorder stores episodes. Optional.
	Recorder EpisodeRecorder
	// Health receives component health. Optional.
	Health HealthReporter
	// Metrics records counters. Optional.
	Metrics *metrics.Metrics
	// Thresholds are the initial detection parameters.
	Thresholds presence.Thresholds
	// PollInterval is the time between poll cycles.
	PollInterval time.Duration
	// ImageName is the attachment name of captured images.
	ImageName string
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// Monitor owns the poll loop and the dwell state.
type Monitor struct {
	// sensor measures distance.
	sensor Sensor
	// camera captures images.
	camera Camera
	// classifier labels images.
	classifier Classifier
	// lock is the shared lock guard.
	lock lock.Actuator
	// notifier delivers alerts.
	notifier Notifier
	// telemetry publishes occupancy.
	telemetry TelemetryPublisher
	// recorder persists episodes; may be nil.
	recorder EpisodeRecorder
	// health receives component health; may be nil.
	health HealthReporter
	// metrics records counters; may be nil.
	metrics *metrics.Metrics
	// pollInterval is the ticker period.
	pollInterval time.Duration
	// imageName is the attachment name.
	imageName string
	// now is the clock.
	now func() time.Time

	// mu protects thresholds and state.
	mu sync.RWMutex
	// thresholds may be replaced at runtime.
	thresholds presence.Thresholds
	// state is the dwell state; only the loop goroutine writes it.
	state presence.DwellState
	// occupied is the occupancy of the last good sample.
	occupied bool
}

// New validates opts and creates an idle Monitor.
func New(opts Options) (*Monitor, error) {
	ports := map[string]any{
		"sensor":     opts.Sensor,
		"camera":     opts.Camera,
		"classifier": opts.Classifier,
		"lock":       opts.Lock,
		"notifier":   opts.Notifier,
		"telemetry":  opts.Telemetry,
	}

	for name, port := range ports {
		if port == nil {
			return nil, fmt.Errorf("%w: %s", errMissingPort, name)
		}
	}

	if opts.PollInterval <= 0 {
		return nil, errInvalidPollInterval
	}

	if opts.ImageName == "" {
		opts.ImageName = DefaultImageName
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Monitor{
		sensor:       opts.Sensor,
		camera:       opts.Camera,
		classifier:   opts.Classifier,
		lock:         opts.Lock,
		notifier:     opts.Notifier,
		telemetry:    opts.Telemetry,
		recorder:     opts.Recorder,
		health:       opts.Health,
		metrics:      opts.Metrics,
		pollInterval: opts.PollInterval,
		imageName:    opts.ImageName,
		now:          opts.Now,
		thresholds:   opts.Thresholds,
		state:        presence.Idle(),
	}, nil
}

// Thresholds returns the detection parameters in force.
func (m *Monitor) Thresholds() presence.Thresholds {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.thresholds
}

// UpdateThresholds replaces the detection parameters from the next cycle on.
// The dwell state is kept.
func (m *Monitor) UpdateThresholds(thresholds presence.Thresholds) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.thresholds = thresholds
}

// State returns the current dwell state.
func (m *Monitor) State() presence.DwellState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state
}

// Run polls until ctx is canceled. The first cycle runs immediately.
// An episode in progress when ctx is canceled runs to completion.
func (m *Monitor) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "monitor")

	logger.InfoKV(ctx, "Monitoring started",
		"poll_interval", m.pollInterval.String(),
		"near_threshold", m.Thresholds().Near,
		"dwell", m.Thresholds().Dwell.String())

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		m.Cycle(ctx)

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, monitoring stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Cycle runs one poll: measure, advance dwell, maybe run an episode, publish.
func (m *Monitor) Cycle(ctx context.Context) {
	thresholds := m.Thresholds()

	// Read the sensor; on failure skip detection and repeat the last occupancy.
	distance, err := m.measure(ctx)
	if err != nil {
		m.metrics.SensorFault()
		m.reportHealth(ComponentSensor, false)
		logger.WarnKV(ctx, "Distance read failed, skipping detection", "error", err)
		m.publish(ctx, m.lastOccupied())

		return
	}

	m.metrics.ObserveSample(distance)
	m.reportHealth(ComponentSensor, true)

	occupied := thresholds.IsOccupied(distance)
	near := thresholds.IsNear(distance)
	now := m.now()

	m.mu.Lock()
	next, fire := m.state.Step(now, near, thresholds.Dwell)
	m.occupied = occupied
	m.mu.Unlock()

	logger.DebugKV(ctx, "Distance measured", "distance", distance, "near", near, "occupied", occupied, "state", next.String())

	if fire {
		// The episode must not be interrupted by shutdown.
		m.runEpisode(context.WithoutCancel(ctx), now, thresholds)
	}

	m.mu.Lock()
	m.state = next
	m.mu.Unlock()

	m.publish(ctx, occupied)
}

func (m *Monitor) lastOccupied() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.occupied
}

func (m *Monitor) measure(ctx context.Context) (distance float64, err error) {
	err = guard(func() error {
		var measureErr error

		distance, measureErr = m.sensor.Measure(ctx)

		return measureErr
	})

	return distance, err
}

func (m *Monitor) publish(ctx context.Context, occupied bool) {
	err := guard(func() error {
		return m.telemetry.PublishTelemetry(ctx, presence.TelemetryEvent{Occupied: occupied})
	})

	m.metrics.Telemetry(occupied, err)
	m.reportHealth(ComponentChannel, err == nil)

	if err != nil {
		logger.WarnKV(ctx, "Telemetry publish failed", "occupied", occupied, "error", err)
	}
}

func (m *Monitor) reportHealth(component string, healthy bool) {
	if m.health != nil {
		m.health.SetHealthy(component, healthy)
	}
}

// guard runs fn and turns a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()

	return fn()
}

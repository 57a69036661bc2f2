package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oshokin/smart-lock/internal/domain/lock"
	"github.com/oshokin/smart-lock/internal/domain/presence"
)

var (
	errNoFrame   = errors.New("no frame")
	errModel     = errors.New("model failed")
	errSMTP      = errors.New("smtp refused")
	errActuator  = errors.New("servo stalled")
	errPublisher = errors.New("broker unreachable")
)

// reading is one scripted sensor answer.
type reading struct {
	distance float64
	err      error
}

// fakeSensor replays readings, then reports an empty doorway.
type fakeSensor struct {
	mu       sync.Mutex
	readings []reading
}

func (s *fakeSensor) Measure(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.readings) == 0 {
		return 30, nil
	}

	r := s.readings[0]
	s.readings = s.readings[1:]

	return r.distance, r.err
}

func distances(values ...float64) []reading {
	readings := make([]reading, 0, len(values))
	for _, v := range values {
		readings = append(readings, reading{distance: v})
	}

	return readings
}

type fakeCamera struct {
	mu    sync.Mutex
	image []byte
	err   error
	calls int
}

func (c *fakeCamera) Capture(context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++

	return c.image, c.err
}

func (c *fakeCamera) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls
}

type fakeClassifier struct {
	result presence.Classification
	err    error
	panics bool
}

func (c *fakeClassifier) Classify(context.Context, []byte) (presence.Classification, error) {
	if c.panics {
		panic("tensor shape mismatch")
	}

	return c.result, c.err
}

// fakeActuator records applied positions. With a gate set, every call
// announces itself on entered and waits for the gate to close.
type fakeActuator struct {
	mu        sync.Mutex
	positions []lock.Position
	entered   chan struct{}
	gate      chan struct{}
	err       error
}

func (a *fakeActuator) Set(_ context.Context, position lock.Position) error {
	if a.gate != nil {
		select {
		case a.entered <- struct{}{}:
		default:
		}

		<-a.gate
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.err != nil {
		return a.err
	}

	a.positions = append(a.positions, position)

	return nil
}

func (a *fakeActuator) Positions() []lock.Position {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]lock.Position(nil), a.positions...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []presence.Alert
	err    error
}

func (n *fakeNotifier) Notify(_ context.Context, alert presence.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.alerts = append(n.alerts, alert)

	return n.err
}

func (n *fakeNotifier) Alerts() []presence.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]presence.Alert(nil), n.alerts...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []bool
	err    error
}

func (p *fakePublisher) PublishTelemetry(_ context.Context, event presence.TelemetryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event.Occupied)

	return p.err
}

func (p *fakePublisher) Events() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]bool(nil), p.events...)
}

type fakeRecorder struct {
	mu       sync.Mutex
	episodes []presence.Episode
}

func (r *fakeRecorder) Record(_ context.Context, episode presence.Episode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.episodes = append(r.episodes, episode)

	return nil
}

func (r *fakeRecorder) Episodes() []presence.Episode {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]presence.Episode(nil), r.episodes...)
}

type fakeHealth struct {
	mu     sync.Mutex
	status map[string]bool
}

func (h *fakeHealth) SetHealthy(component string, healthy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status == nil {
		h.status = make(map[string]bool)
	}

	h.status[component] = healthy
}

func (h *fakeHealth) Healthy(component string) (bool, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	healthy, ok := h.status[component]

	return healthy, ok
}

// rig bundles a monitor with its fakes.
type rig struct {
	monitor    *Monitor
	sensor     *fakeSensor
	camera     *fakeCamera
	classifier *fakeClassifier
	actuator   *fakeActuator
	guard      *lock.Guard
	notifier   *fakeNotifier
	publisher  *fakePublisher
	recorder   *fakeRecorder
	health     *fakeHealth
	clock      *stepClock
}

// stepClock is a manual clock advanced by the test.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func defaultThresholds() presence.Thresholds {
	return presence.Thresholds{
		Near:       15,
		Occupied:   10,
		Dwell:      5 * time.Second,
		Confidence: 0.9,
	}
}

func newRig(readings []reading, useRealClock bool) *rig {
	r := &rig{
		sensor:     &fakeSensor{readings: readings},
		camera:     &fakeCamera{image: []byte("jpeg")},
		classifier: &fakeClassifier{result: presence.Classification{Label: "Alice", Confidence: 0.95}},
		actuator:   &fakeActuator{},
		notifier:   &fakeNotifier{},
		publisher:  &fakePublisher{},
		recorder:   &fakeRecorder{},
		health:     &fakeHealth{},
		clock:      &stepClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}

	r.guard = lock.NewGuard(r.actuator)

	opts := Options{
		Sensor:       r.sensor,
		Camera:       r.camera,
		Classifier:   r.classifier,
		Lock:         r.guard,
		Notifier:     r.notifier,
		Telemetry:    r.publisher,
		Recorder:     r.recorder,
		Health:       r.health,
		Thresholds:   defaultThresholds(),
		PollInterval: time.Second,
	}

	if !useRealClock {
		opts.Now = r.clock.Now
	}

	m, err := New(opts)
	if err != nil {
		panic(err)
	}

	r.monitor = m

	return r
}

// cycles runs n poll cycles one second apart on the manual clock.
func (r *rig) cycles(ctx context.Context, n int) {
	for range n {
		r.monitor.Cycle(ctx)
		r.clock.Advance(time.Second)
	}
}

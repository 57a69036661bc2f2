package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smart_lock"

// Label values shared by callers.
const (
	ResultOK    = "ok"
	ResultError = "error"

	SourcePresence = "presence"
	SourceRemote   = "remote"
	SourceShutdown = "shutdown"
)

// Metrics holds the collectors of the daemon on a private registry.
type Metrics struct {
	// registry holds every collector below plus the Go and process collectors.
	registry *prometheus.Registry

	// polls counts poll cycles by result (ok, sensor_fault).
	polls *prometheus.CounterVec
	// distance is the last measured distance in inches.
	distance prometheus.Gauge
	// occupied is the last published occupancy (1 or 0).
	occupied prometheus.Gauge
	// episodes counts detection episodes by outcome.
	episodes *prometheus.CounterVec
	// episodeDuration observes capture-to-close episode time.
	episodeDuration prometheus.Histogram
	// actuations counts lock movements by source, position and result.
	actuations *prometheus.CounterVec
	// notifications counts alert deliveries by result.
	notifications *prometheus.CounterVec
	// telemetry counts telemetry publishes by result.
	telemetry *prometheus.CounterVec
	// commands counts inbound remote commands by action.
	commands *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Poll cycles by result.",
		}, []string{"result"}),
		distance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "distance_inches",
			Help:      "Last measured distance in inches.",
		}),
		occupied: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "occupied",
			Help:      "Last published occupancy flag.",
		}),
		episodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "episodes_total",
			Help:      "Detection episodes by outcome.",
		}, []string{"outcome"}),
		episodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "episode_duration_seconds",
			Help:      "Duration of detection episodes.",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 21},
		}),
		actuations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuations_total",
			Help:      "Lock movements by source, position and result.",
		}, []string{"source", "position", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Visitor notifications by result.",
		}, []string{"result"}),
		telemetry: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_publishes_total",
			Help:      "Telemetry publishes by result.",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_commands_total",
			Help:      "Inbound remote commands by action.",
		}, []string{"action"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.polls,
		m.distance,
		m.occupied,
		m.episodes,
		m.episodeDuration,
		m.actuations,
		m.notifications,
		m.telemetry,
		m.commands,
	)

	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSample records a successful distance read.
func (m *Metrics) ObserveSample(distance float64) {
	if m == nil {
		return
	}

	m.polls.WithLabelValues(ResultOK).Inc()
	m.distance.Set(distance)
}

// SensorFault records a poll cycle whose read failed.
func (m *Metrics) SensorFault() {
	if m == nil {
		return
	}

	m.polls.WithLabelValues("sensor_fault").Inc()
}

// Telemetry records a telemetry publish.
func (m *Metrics) Telemetry(occupied bool, err error) {
	if m == nil {
		return
	}

	if occupied {
		m.occupied.Set(1)
	} else {
		m.occupied.Set(0)
	}

	m.telemetry.WithLabelValues(result(err)).Inc()
}

// Episode records a closed detection episode.
func (m *Metrics) Episode(outcome string, duration time.Duration) {
	if m == nil {
		return
	}

	m.episodes.WithLabelValues(outcome).Inc()
	m.episodeDuration.Observe(duration.Seconds())
}

// Actuation records a lock movement request.
func (m *Metrics) Actuation(source, position string, err error) {
	if m == nil {
		return
	}

	m.actuations.WithLabelValues(source, position, result(err)).Inc()
}

// Notification records an alert delivery attempt.
func (m *Metrics) Notification(err error) {
	if m == nil {
		return
	}

	m.notifications.WithLabelValues(result(err)).Inc()
}

// Command records an inbound remote command; unrecognized actions count as "ignored".
func (m *Metrics) Command(action string) {
	if m == nil {
		return
	}

	m.commands.WithLabelValues(action).Inc()
}

func result(err error) string {
	if err != nil {
		return ResultError
	}

	return ResultOK
}

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/smart-lock/internal/config"
	"github.com/oshokin/smart-lock/internal/domain/lock"
	"github.com/oshokin/smart-lock/internal/domain/presence"
	"github.com/oshokin/smart-lock/internal/metrics"
	"github.com/oshokin/smart-lock/internal/repository/episode"
	"github.com/oshokin/smart-lock/internal/service/command"
	"github.com/oshokin/smart-lock/internal/service/control"
	"github.com/oshokin/smart-lock/internal/service/history"
	"github.com/oshokin/smart-lock/internal/service/monitor"
)

// TestVisitorEpisode_IsStoredAndListed drives the monitor against the SQLite
// log and reads the result back through the history printer.
func TestVisitorEpisode_IsStoredAndListed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storePath := filepath.Join(t.TempDir(), "episodes.db")

	repo, err := episode.Open(ctx, storePath)
	require.NoError(t, err)

	servo := &servoLog{}
	guard := lock.NewGuard(servo)
	mail := &inbox{}
	m := metrics.New()
	reporter, _ := startHealth(t)
	clock := &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	mon, err := monitor.New(monitor.Options{
		Sensor:       constantSensor(5),
		Camera:       stillCamera{},
		Classifier:   knownFace{},
		Lock:         guard,
		Notifier:     mail,
		Telemetry:    discardTelemetry{},
		Recorder:     repo,
		Health:       reporter,
		Metrics:      m,
		Thresholds:   presence.Thresholds{Near: 15, Occupied: 10, Dwell: 5 * time.Second, Confidence: 0.9},
		PollInterval: time.Second,
		Now:          clock.Now,
	})
	require.NoError(t, err)

	for range 8 {
		mon.Cycle(ctx)
		clock.Advance(time.Second)
	}

	require.Equal(t, []lock.Position{lock.Unlocked}, servo.Positions())
	require.Len(t, mail.alerts, 1)
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP smart_lock_episodes_total Detection episodes by outcome.
# TYPE smart_lock_episodes_total counter
smart_lock_episodes_total{outcome="granted"} 1
`), "smart_lock_episodes_total"))

	// A remote lock arrives after the visitor went in.
	handler := command.NewHandler(guard, m)
	handler.HandleMessage(ctx, []byte(`{"command":"lock"}`))
	require.Equal(t, []lock.Position{lock.Unlocked, lock.Locked}, servo.Positions())

	require.NoError(t, repo.Close())

	var out bytes.Buffer

	require.NoError(t, history.Run(ctx, &history.Options{StorePath: storePath, Limit: 10, Output: &out}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], "granted")
	require.Contains(t, lines[1], "Alice")
	require.Contains(t, lines[1], "unlocked")
}

// TestCtlStatus_ReadsDaemonHealth runs the operator status command against a
// live health endpoint and a settings file without a status topic.
func TestCtlStatus_ReadsDaemonHealth(t *testing.T) {
	t.Parallel()

	reporter, address := startHealth(t)
	reporter.SetHealthy(monitor.ComponentCamera, false)

	cfg := config.Default()
	cfg.Channel.Broker = "tcp://127.0.0.1:1883"
	cfg.Health.ListenAddress = address
	cfg.Timeout = 2 * time.Second

	cfgPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	require.NoError(t, config.Save(cfgPath, cfg))

	var out bytes.Buffer

	err := control.Status(context.Background(), &control.StatusOptions{
		ConfigPath: cfgPath,
		JSON:       true,
		Output:     &out,
	})
	require.NoError(t, err)

	var report control.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Equal(t, "not_serving", report.Health["overall"])
	require.Equal(t, "not_serving", report.Health[monitor.ComponentCamera])
	require.Equal(t, "serving", report.Health[monitor.ComponentSensor])
	require.Nil(t, report.Heartbeat)
	require.NotEmpty(t, report.HeartbeatError)
}

// TestCtlStatus_DaemonDown reports the missing endpoint instead of failing.
func TestCtlStatus_DaemonDown(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Channel.Broker = "tcp://127.0.0.1:1883"
	cfg.Health.ListenAddress = "127.0.0.1:1"
	cfg.Timeout = 200 * time.Millisecond

	cfgPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	require.NoError(t, config.Save(cfgPath, cfg))

	var out bytes.Buffer

	require.NoError(t, control.Status(context.Background(), &control.StatusOptions{ConfigPath: cfgPath, Output: &out}))
	require.Contains(t, out.String(), "Health:\n  unavailable:")

	_, statErr := os.Stat(cfgPath)
	require.NoError(t, statErr)
}

package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/smart-lock/internal/api/grpc/health"
	"github.com/oshokin/smart-lock/internal/channel/mqtt"
	"github.com/oshokin/smart-lock/internal/config"
	"github.com/oshokin/smart-lock/internal/logger"
)

// StatusOptions configures the status report.
type StatusOptions struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// HealthAddress overrides the health endpoint from the settings.
	HealthAddress string
	// Broker overrides the broker URL from the settings.
	Broker string
	// JSON prints the report as JSON instead of text.
	JSON bool
	// Output receives the report.
	Output io.Writer
}

// Report is what smart-lock-ctl status prints.
type Report struct {
	// Health is the serving status per entry; "overall" is the daemon itself.
	Health map[string]string `json:"health,omitempty"`
	// HealthError explains why the health endpoint could not be read.
	HealthError string `json:"health_error,omitempty"`
	// Heartbeat is the last retained status published by the daemon.
	Heartbeat *mqtt.Status `json:"heartbeat,omitempty"`
	// HeartbeatError explains why no heartbeat was read.
	HeartbeatError string `json:"heartbeat_error,omitempty"`
}

// overallKey names the "" health entry in reports.
const overallKey = "overall"

type healthChecker interface {
	CheckAll(ctx context.Context) (*health.Report, error)
}

type statusFetcher interface {
	FetchStatus(ctx context.Context) (mqtt.Status, error)
}

// Status queries the daemon health endpoint and the retained heartbeat. Each
// source is optional; the report says why a missing one is missing.
func Status(ctx context.Context, opts *StatusOptions) error {
	ctx = logger.WithName(ctx, "smart-lock-ctl")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	report := &Report{}

	address := cfg.Health.ListenAddress
	if opts.HealthAddress != "" {
		address = opts.HealthAddress
	}

	// Step 1: local health endpoint.
	if client, dialErr := health.Dial(ctx, address, health.WithCallTimeout(cfg.Timeout)); dialErr != nil {
		report.HealthError = dialErr.Error()
	} else {
		collectHealth(ctx, client, report)

		_ = client.Close()
	}

	// Step 2: retained heartbeat on the broker.
	if cfg.Channel.StatusTopic == "" {
		report.HeartbeatError = "status topic is not configured"
	} else {
		channel, connectErr := mqtt.Connect(ctx, toolOptions(cfg, opts.Broker), nil)
		if connectErr != nil {
			report.HeartbeatError = connectErr.Error()
		} else {
			collectHeartbeat(ctx, channel, cfg.Timeout, report)
			channel.Close()
		}
	}

	if opts.JSON {
		encoder := json.NewEncoder(opts.Output)
		encoder.SetIndent("", "  ")

		return encoder.Encode(report)
	}

	return WriteText(opts.Output, report)
}

func collectHealth(ctx context.Context, checker healthChecker, report *Report) {
	result, err := checker.CheckAll(ctx)
	if err != nil {
		logger.DebugKV(ctx, "Health check failed", "error", err)
		report.HealthError = err.Error()

		return
	}

	report.Health = make(map[string]string, len(result.Components)+1)
	report.Health[overallKey] = servingText(result.Overall)

	for name, status := range result.Components {
		report.Health[name] = servingText(status)
	}
}

func collectHeartbeat(ctx context.Context, fetcher statusFetcher, timeout time.Duration, report *Report) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	status, err := fetcher.FetchStatus(ctx)
	if err != nil {
		logger.DebugKV(ctx, "Heartbeat not available", "error", err)
		report.HeartbeatError = err.Error()

		return
	}

	report.Heartbeat = &status
}

// WriteText prints the report for humans.
func WriteText(w io.Writer, report *Report) error {
	var b strings.Builder

	b.WriteString("Health:\n")

	if report.HealthError != "" {
		fmt.Fprintf(&b, "  unavailable: %s\n", report.HealthError)
	}

	for _, name := range slices.Sorted(maps.Keys(report.Health)) {
		fmt.Fprintf(&b, "  %-10s %s\n", name, report.Health[name])
	}

	b.WriteString("Heartbeat:\n")

	switch hb := report.Heartbeat; {
	case hb == nil:
		fmt.Fprintf(&b, "  unavailable: %s\n", report.HeartbeatError)
	case !hb.Online:
		b.WriteString("  offline\n")
	default:
		fmt.Fprintf(&b, "  lock       %s\n", hb.Lock)
		fmt.Fprintf(&b, "  phase      %s\n", hb.Phase)
		fmt.Fprintf(&b, "  uptime     %s\n", time.Duration(hb.UptimeSeconds)*time.Second)
		fmt.Fprintf(&b, "  load1      %.2f\n", hb.Load1)
		fmt.Fprintf(&b, "  memory     %.1f%%\n", hb.MemoryUsedPercent)

		if hb.TemperatureCelsius > 0 {
			fmt.Fprintf(&b, "  cpu temp   %.1f°C\n", hb.TemperatureCelsius)
		}

		fmt.Fprintf(&b, "  version    %s\n", hb.Version)
	}

	_, err := io.WriteString(w, b.String())

	return err
}

func servingText(status healthpb.HealthCheckResponse_ServingStatus) string {
	return strings.ToLower(status.String())
}

package lockd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/oshokin/smart-lock/internal/api/grpc/health"
	"github.com/oshokin/smart-lock/internal/channel/mqtt"
	"github.com/oshokin/smart-lock/internal/config"
	"github.com/oshokin/smart-lock/internal/device/camera"
	"github.com/oshokin/smart-lock/internal/device/servo"
	"github.com/oshokin/smart-lock/internal/device/ultrasonic"
	"github.com/oshokin/smart-lock/internal/domain/lock"
	"github.com/oshokin/smart-lock/internal/domain/presence"
	"github.com/oshokin/smart-lock/internal/logger"
	"github.com/oshokin/smart-lock/internal/metrics"
	"github.com/oshokin/smart-lock/internal/notify"
	"github.com/oshokin/smart-lock/internal/notify/email"
	"github.com/oshokin/smart-lock/internal/repository/episode"
	"github.com/oshokin/smart-lock/internal/service/command"
	"github.com/oshokin/smart-lock/internal/service/monitor"
	"github.com/oshokin/smart-lock/internal/version"
	"github.com/oshokin/smart-lock/internal/vision"
	"github.com/oshokin/smart-lock/internal/vision/labels"
)

// Options controls the smart-lock daemon.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// NoWatch disables reloading detection thresholds when the settings file changes.
	NoWatch bool
}

// errAlreadyRunning is returned when another daemon holds the hardware.
var errAlreadyRunning = errors.New("another smart-lock instance is running")

// Run opens every collaborator, runs the monitor and the background services,
// and blocks until ctx is canceled. The lock is left Locked on return.
//
//nolint:cyclop,funlen // Sequential wiring reads best in one place.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "smart-lock")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Only one process may drive the pins.
	running, pid, err := anotherInstanceRunning()
	if err != nil {
		logger.WarnKV(ctx, "Could not list processes", "error", err)
	} else if running {
		return fmt.Errorf("%w: pid %d", errAlreadyRunning, pid)
	}

	logger.InfoKV(ctx, "Starting", "version", version.Full())

	var closers closerStack
	defer closers.closeAll(ctx)

	m := metrics.New()
	reporter := health.NewReporter()

	// Hardware.
	sensor, err := ultrasonic.Open(cfg.Sensor.TriggerPin, cfg.Sensor.EchoPin, cfg.Sensor.Timeout)
	if err != nil {
		return fmt.Errorf("open distance sensor: %w", err)
	}

	bolt, err := servo.Open(cfg.Servo.Pin, servo.Options{
		LockedAngle:   cfg.Servo.LockedAngle,
		UnlockedAngle: cfg.Servo.UnlockedAngle,
		Settle:        cfg.Servo.Settle,
	})
	if err != nil {
		return fmt.Errorf("open servo: %w", err)
	}

	closers.push("servo", bolt.Release)

	guard := lock.NewGuard(bolt)

	// Whatever happens below, leave the door locked. Steps pushed later,
	// the command channel among them, close before this one runs.
	pushLockOnExit(ctx, &closers, guard, m)

	if err = guard.Set(ctx, lock.Locked); err != nil {
		return fmt.Errorf("lock on startup: %w", err)
	}

	cam := camera.New(camera.Options{
		Device:    cfg.Camera.Device,
		Warmup:    cfg.Camera.Warmup,
		Alpha:     cfg.Camera.BrightnessAlpha,
		Beta:      cfg.Camera.BrightnessBeta,
		ImagePath: cfg.Camera.ImagePath,
	})

	// Vision model; a labels file that does not cover the model is fatal.
	names, err := labels.Load(cfg.Classifier.LabelsPath)
	if err != nil {
		return fmt.Errorf("load labels: %w", err)
	}

	classifier, err := vision.Open(cfg.Classifier.ModelPath, names, cfg.Classifier.InputSize)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	closers.push("classifier", classifier.Close)

	notifier := newNotifier(ctx, cfg)

	var recorder monitor.EpisodeRecorder

	if cfg.Store.Path != "" {
		repo, openErr := episode.Open(ctx, cfg.Store.Path)
		if openErr != nil {
			return fmt.Errorf("open episode store: %w", openErr)
		}

		closers.push("episode store", repo.Close)
		recorder = repo
	}

	// Command channel; commands go straight to the shared guard.
	handler := command.NewHandler(guard, m)

	channel, err := mqtt.Connect(ctx, channelOptions(cfg), handler.HandleMessage)
	if err != nil {
		return fmt.Errorf("connect command channel: %w", err)
	}

	closers.push("command channel", func() error {
		channel.Close()
		return nil
	})

	mon, err := monitor.New(monitor.Options{
		Sensor:       sensor,
		Camera:       cam,
		Classifier:   classifier,
		Lock:         guard,
		Notifier:     notifier,
		Telemetry:    channel,
		Recorder:     recorder,
		Health:       reporter,
		Metrics:      m,
		Thresholds:   Thresholds(cfg.Detection),
		PollInterval: cfg.Detection.PollInterval,
		ImageName:    filepath.Base(cfg.Camera.ImagePath),
	})
	if err != nil {
		return fmt.Errorf("create monitor: %w", err)
	}

	var wg sync.WaitGroup

	if !opts.NoWatch {
		wg.Go(func() {
			watchErr := config.Watch(ctx, opts.ConfigPath, func(updated *config.Config) {
				if updated.Detection.PollInterval != cfg.Detection.PollInterval {
					logger.Warn(ctx, "Poll interval changes take effect after a restart")
				}

				mon.UpdateThresholds(Thresholds(updated.Detection))
			})
			if watchErr != nil {
				logger.WarnKV(ctx, "Settings watcher stopped", "error", watchErr)
			}
		})
	}

	if cfg.Metrics.ListenAddress != "" {
		wg.Go(func() {
			if serveErr := m.Serve(ctx, cfg.Metrics.ListenAddress); serveErr != nil {
				logger.ErrorKV(ctx, "Metrics endpoint failed", "error", serveErr)
			}
		})
	}

	if cfg.Health.ListenAddress != "" {
		wg.Go(func() {
			if serveErr := reporter.Serve(ctx, cfg.Health.ListenAddress); serveErr != nil {
				logger.ErrorKV(ctx, "Health endpoint failed", "error", serveErr)
			}
		})
	}

	if cfg.Channel.StatusTopic != "" {
		wg.Go(func() {
			heartbeat(ctx, channel, guard, mon, cfg.Channel.StatusInterval)
		})
	}

	err = mon.Run(ctx)

	wg.Wait()

	return err
}

// Thresholds converts the detection settings.
func Thresholds(d config.Detection) presence.Thresholds {
	return presence.Thresholds{
		Near:       d.NearThreshold,
		Occupied:   d.OccupiedThreshold,
		Dwell:      d.DwellDuration,
		Confidence: d.ConfidenceThreshold,
	}
}

func channelOptions(cfg *config.Config) mqtt.Options {
	opts := mqtt.FromConfig(cfg)
	opts.Announce = true

	return opts
}

func newNotifier(ctx context.Context, cfg *config.Config) monitor.Notifier {
	if cfg.Email.Host == "" {
		logger.Warn(ctx, "E-mail is not configured, alerts are only logged")
		return notify.Log{}
	}

	return email.New(email.Options{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		From:     cfg.Email.From,
		To:       cfg.Email.To,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		Timeout:  cfg.Timeout,
	})
}

// pushLockOnExit registers the final lock step. It runs after every source of
// commands registered later has closed and before the servo is released.
func pushLockOnExit(ctx context.Context, closers *closerStack, guard *lock.Guard, m *metrics.Metrics) {
	closers.push("lock", func() error {
		lockOnExit(ctx, guard, m)
		return nil
	})
}

// lockOnExit leaves the door locked whatever state the daemon stops in and
// refuses any movement requested afterwards.
func lockOnExit(ctx context.Context, guard *lock.Guard, m *metrics.Metrics) {
	ctx = context.WithoutCancel(ctx)

	err := guard.Shutdown(ctx)
	m.Actuation(metrics.SourceShutdown, lock.Locked.String(), err)

	if err != nil {
		logger.ErrorKV(ctx, "Could not lock on shutdown", "error", err)
		return
	}

	logger.Info(ctx, "Door locked, shutting down")
}

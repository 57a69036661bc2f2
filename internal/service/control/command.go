package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/smart-lock/internal/channel/mqtt"
	"github.com/oshokin/smart-lock/internal/config"
	"github.com/oshokin/smart-lock/internal/domain/lock"
	"github.com/oshokin/smart-lock/internal/logger"
)

// CommandOptions configures a remote lock or unlock.
type CommandOptions struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// Broker overrides the broker URL from the settings.
	Broker string
	// Position is the requested lock position.
	Position lock.Position
}

// defaultPushInterval is the delay between publish attempts.
const defaultPushInterval = time.Second

// errInvalidPosition is returned for a position that has no command.
var errInvalidPosition = errors.New("position must be locked or unlocked")

// commandPublisher is the part of the MQTT client used to send commands.
type commandPublisher interface {
	PublishCommand(ctx context.Context, cmd lock.RemoteCommand) error
}

// SendCommand publishes a lock or unlock command, retrying until the broker
// accepts it or the settings timeout expires.
func SendCommand(ctx context.Context, opts *CommandOptions) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "smart-lock-ctl")

	cmd, err := commandFor(opts.Position)
	if err != nil {
		return err
	}

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	actor, err := detectActor()
	if err != nil {
		return fmt.Errorf("detect actor: %w", err)
	}

	client, err := mqtt.Connect(ctx, toolOptions(cfg, opts.Broker), nil)
	if err != nil {
		return err
	}

	defer client.Close()

	logger.InfoKV(ctx, "Sending remote command", "command", cmd.Action, "actor", actor, "broker", cfg.Channel.Broker)

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err = push(ctx, client, cmd, defaultPushInterval); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Remote command delivered to broker", "command", cmd.Action)

	return nil
}

// push publishes cmd immediately and then on every interval until it succeeds.
func push(ctx context.Context, publisher commandPublisher, cmd lock.RemoteCommand, interval time.Duration) error {
	attempt := func() bool {
		if err := publisher.PublishCommand(ctx, cmd); err != nil {
			logger.WarnKV(ctx, "Publish failed, retrying", "error", err)
			return false
		}

		return true
	}

	// Attempt immediately before starting retry loop.
	if attempt() {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("send %s command: %w", cmd.Action, ctx.Err())
		case <-ticker.C:
			if attempt() {
				return nil
			}
		}
	}
}

func commandFor(position lock.Position) (lock.RemoteCommand, error) {
	switch position {
	case lock.Locked:
		return lock.RemoteCommand{Action: lock.ActionLock}, nil
	case lock.Unlocked:
		return lock.RemoteCommand{Action: lock.ActionUnlock}, nil
	default:
		return lock.RemoteCommand{}, errInvalidPosition
	}
}

// toolOptions derives a quiet client with its own ID so the tool never takes
// over the daemon session.
func toolOptions(cfg *config.Config, broker string) mqtt.Options {
	opts := mqtt.FromConfig(cfg)
	opts.ClientID = cfg.Channel.ClientID + "-ctl-" + uuid.NewString()[:8]

	if broker != "" {
		opts.Broker = broker
	}

	return opts
}

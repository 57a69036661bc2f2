package lockd

import (
	"context"
	"time"

	"github.com/oshokin/smart-lock/internal/channel/mqtt"
	"github.com/oshokin/smart-lock/internal/domain/lock"
	"github.com/oshokin/smart-lock/internal/domain/presence"
	"github.com/oshokin/smart-lock/internal/logger"
	"github.com/oshokin/smart-lock/internal/sysinfo"
	"github.com/oshokin/smart-lock/internal/version"
)

// statusPublisher is the part of the channel the heartbeat needs.
type statusPublisher interface {
	PublishStatus(ctx context.Context, status mqtt.Status) error
}

// positionSource reports the last applied lock position.
type positionSource interface {
	Position() lock.Position
}

// phaseSource reports the dwell state of the monitor.
type phaseSource interface {
	State() presence.DwellState
}

// heartbeat publishes the retained status every interval until ctx is done.
func heartbeat(
	ctx context.Context,
	publisher statusPublisher,
	position positionSource,
	phase phaseSource,
	interval time.Duration,
) {
	ctx = logger.WithName(ctx, "heartbeat")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status := buildStatus(ctx, position, phase)
		if err := publisher.PublishStatus(ctx, status); err != nil {
			logger.DebugKV(ctx, "Status not published", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func buildStatus(ctx context.Context, position positionSource, phase phaseSource) mqtt.Status {
	snapshot, err := sysinfo.Sample(ctx)
	if err != nil {
		logger.DebugKV(ctx, "Some host vitals unavailable", "error", err)
	}

	return mqtt.Status{
		Online:             true,
		Lock:               position.Position().String(),
		Phase:              phase.State().Phase().String(),
		UptimeSeconds:      snapshot.UptimeSeconds,
		Load1:              snapshot.Load1,
		MemoryUsedPercent:  snapshot.MemoryUsedPercent,
		TemperatureCelsius: snapshot.TemperatureCelsius,
		Version:            version.Short(),
	}
}

package notify

import (
	"context"

	"github.com/oshokin/smart-lock/internal/domain/presence"
	"github.com/oshokin/smart-lock/internal/logger"
)

// Log only writes alerts to the log. It is used when e-mail is not configured.
type Log struct{}

// Notify logs alert and never fails.
func (Log) Notify(ctx context.Context, alert presence.Alert) error {
	logger.InfoKV(ctx, "Visitor alert (e-mail disabled)",
		"label", alert.Label,
		"known", alert.Known,
		"image_bytes", len(alert.Image))

	return nil
}

package command

import (
	"context"

	"github.com/oshokin/smart-lock/internal/domain/lock"
	"github.com/oshokin/smart-lock/internal/logger"
	"github.com/oshokin/smart-lock/internal/metrics"
)

// actionIgnored labels commands that were dropped.
const actionIgnored = "ignored"

// Handler drives the lock from inbound commands. It is safe for concurrent use.
type Handler struct {
	// lock is the guard shared with the monitor.
	lock lock.Actuator
	// metrics counts handled commands; may be nil.
	metrics *metrics.Metrics
}

// NewHandler creates a Handler that moves actuator.
func NewHandler(actuator lock.Actuator, m *metrics.Metrics) *Handler {
	return &Handler{
		lock:    actuator,
		metrics: m,
	}
}

// HandleMessage decodes a raw payload and applies it. Malformed payloads are
// logged and dropped.
func (h *Handler) HandleMessage(ctx context.Context, payload []byte) {
	cmd, err := lock.DecodeCommand(payload)
	if err != nil {
		h.metrics.Command(actionIgnored)
		logger.WarnKV(ctx, "Dropping malformed command", "payload", string(payload), "error", err)

		return
	}

	h.Handle(ctx, cmd)
}

// Handle applies cmd. Unknown actions are logged and dropped; actuation
// failures are logged. Nothing is reported back to the sender.
func (h *Handler) Handle(ctx context.Context, cmd lock.RemoteCommand) {
	position, ok := cmd.Position()
	if !ok {
		h.metrics.Command(actionIgnored)
		logger.WarnKV(ctx, "Dropping unknown command", "command", cmd.Action)

		return
	}

	h.metrics.Command(cmd.Action)
	logger.InfoKV(ctx, "Remote command received", "command", cmd.Action)

	err := h.lock.Set(ctx, position)
	h.metrics.Actuation(metrics.SourceRemote, position.String(), err)

	if err != nil {
		logger.ErrorKV(ctx, "Remote command failed", "command", cmd.Action, "error", err)
		return
	}

	logger.InfoKV(ctx, "Lock moved by remote command", "position", position.String())
}

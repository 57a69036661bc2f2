package presence

import "errors"

// Failure classes of one poll cycle or detection episode. Adapters wrap their
// causes with these so the monitor can classify them with errors.Is. None of
// them stops the monitoring loop.
var (
	// ErrSensorTimeout means the distance read did not complete in time; the cycle is skipped.
	ErrSensorTimeout = errors.New("sensor timeout")
	// ErrCaptureFailed aborts the episode before classification.
	ErrCaptureFailed = errors.New("capture failed")
	// ErrClassifierFailed is treated as an unknown visitor.
	ErrClassifierFailed = errors.New("classifier failed")
	// ErrNotificationFailed is logged and never retried.
	ErrNotificationFailed = errors.New("notification failed")
	// ErrChannelFailed marks a lost telemetry publish.
	ErrChannelFailed = errors.New("channel failed")
)

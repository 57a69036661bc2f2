package camera

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/oshokin/smart-lock/internal/domain/presence"
	"github.com/oshokin/smart-lock/internal/logger"
)

// Options configures a Camera.
type Options struct {
	// Device is the video device index.
	Device int
	// Warmup is the time frames are read and dropped so exposure can settle.
	Warmup time.Duration
	// Alpha is the contrast gain.
	Alpha float64
	// Beta is the brightness offset.
	Beta float64
	// ImagePath keeps a copy of the last capture on disk; empty skips it.
	ImagePath string
}

// Camera opens the device for every capture so it is not held between visitors.
type Camera struct {
	// opts holds device and adjustment settings.
	opts Options
	// mu serializes captures.
	mu sync.Mutex
}

// New creates a Camera.
func New(opts Options) *Camera {
	return &Camera{opts: opts}
}

// Capture opens the device, drops frames during warm-up, brightens the last
// frame and returns it as JPEG. Failures wrap presence.ErrCaptureFailed.
func (c *Camera) Capture(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	webcam, err := gocv.OpenVideoCapture(c.opts.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: open device %d: %w", presence.ErrCaptureFailed, c.opts.Device, err)
	}

	defer func() {
		_ = webcam.Close()
	}()

	frame := gocv.NewMat()
	defer frame.Close()

	// Keep reading until warm-up is over; the last good frame wins.
	deadline := time.Now().Add(c.opts.Warmup)
	for {
		if ok := webcam.Read(&frame); !ok {
			return nil, fmt.Errorf("%w: read frame from device %d", presence.ErrCaptureFailed, c.opts.Device)
		}

		if time.Now().After(deadline) {
			break
		}
	}

	if frame.Empty() {
		return nil, fmt.Errorf("%w: empty frame", presence.ErrCaptureFailed)
	}

	adjusted := gocv.NewMat()
	defer adjusted.Close()

	gocv.ConvertScaleAbs(frame, &adjusted, c.opts.Alpha, c.opts.Beta)

	if c.opts.ImagePath != "" && !gocv.IMWrite(c.opts.ImagePath, adjusted) {
		logger.WarnKV(ctx, "Could not keep a copy of the capture", "path", c.opts.ImagePath)
	}

	encoded, err := gocv.IMEncode(gocv.JPEGFileExt, adjusted)
	if err != nil {
		return nil, fmt.Errorf("%w: encode jpeg: %w", presence.ErrCaptureFailed, err)
	}
	defer encoded.Close()

	return bytes.Clone(encoded.GetBytes()), nil
}

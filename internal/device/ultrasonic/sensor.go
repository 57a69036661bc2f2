package ultrasonic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/oshokin/smart-lock/internal/device/board"
	"github.com/oshokin/smart-lock/internal/domain/presence"
)

const (
	// triggerPulse is the trigger high time required by the module.
	triggerPulse = 10 * time.Microsecond
	// halfSpeedOfSound is half the speed of sound in cm/s; the echo covers the distance twice.
	halfSpeedOfSound = 17150.0
	// inchesPerCentimeter converts centimeters to inches.
	inchesPerCentimeter = 0.393701
)

// TriggerPin drives the trigger line.
type TriggerPin interface {
	Out(level gpio.Level) error
}

// EchoPin reports edges on the echo line.
type EchoPin interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	WaitForEdge(timeout time.Duration) bool
	Read() gpio.Level
}

// Sensor measures distance in inches. Measurements are serialized.
type Sensor struct {
	// trigger starts a measurement.
	trigger TriggerPin
	// echo is high while the pulse travels.
	echo EchoPin
	// timeout bounds one whole measurement.
	timeout time.Duration
	// now is the clock used to time the echo.
	now func() time.Time
	// mu serializes measurements.
	mu sync.Mutex
}

// Open resolves the named pins and prepares them.
func Open(triggerName, echoName string, timeout time.Duration) (*Sensor, error) {
	trigger, err := board.Pin(triggerName)
	if err != nil {
		return nil, err
	}

	echo, err := board.Pin(echoName)
	if err != nil {
		return nil, err
	}

	return New(trigger, echo, timeout, time.Now)
}

// New prepares the pins: trigger low, echo as input reporting both edges.
func New(trigger TriggerPin, echo EchoPin, timeout time.Duration, now func() time.Time) (*Sensor, error) {
	if err := trigger.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("set trigger low: %w", err)
	}

	if err := echo.In(gpio.PullDown, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("configure echo: %w", err)
	}

	return &Sensor{
		trigger: trigger,
		echo:    echo,
		timeout: timeout,
		now:     now,
	}, nil
}

// Measure fires one pulse and converts the echo width to inches. A missing
// edge within the timeout is reported as presence.ErrSensorTimeout.
func (s *Sensor) Measure(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pulse(); err != nil {
		return 0, err
	}

	deadline := s.now().Add(s.timeout)

	start, err := s.waitFor(gpio.High, deadline)
	if err != nil {
		return 0, fmt.Errorf("wait for echo start: %w", err)
	}

	end, err := s.waitFor(gpio.Low, deadline)
	if err != nil {
		return 0, fmt.Errorf("wait for echo end: %w", err)
	}

	return Inches(end.Sub(start)), nil
}

// Inches converts an echo width to a distance.
func Inches(echo time.Duration) float64 {
	return echo.Seconds() * halfSpeedOfSound * inchesPerCentimeter
}

func (s *Sensor) pulse() error {
	if err := s.trigger.Out(gpio.High); err != nil {
		return fmt.Errorf("raise trigger: %w", err)
	}

	time.Sleep(triggerPulse)

	if err := s.trigger.Out(gpio.Low); err != nil {
		return fmt.Errorf("lower trigger: %w", err)
	}

	return nil
}

// waitFor blocks until echo reads level and returns when that happened.
func (s *Sensor) waitFor(level gpio.Level, deadline time.Time) (time.Time, error) {
	for s.echo.Read() != level {
		remaining := deadline.Sub(s.now())
		if remaining <= 0 || !s.echo.WaitForEdge(remaining) {
			return time.Time{}, presence.ErrSensorTimeout
		}
	}

	return s.now(), nil
}

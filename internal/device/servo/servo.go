package servo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/oshokin/smart-lock/internal/device/board"
	"github.com/oshokin/smart-lock/internal/domain/lock"
)

// Frequency is the servo control frequency.
const Frequency = 50 * physic.Hertz

// PWMPin is the subset of a periph pin the servo needs.
type PWMPin interface {
	PWM(duty gpio.Duty, f physic.Frequency) error
}

// Options configures a Servo.
type Options struct {
	// LockedAngle is the bolt-out angle in degrees.
	LockedAngle float64
	// UnlockedAngle is the bolt-in angle in degrees.
	UnlockedAngle float64
	// Settle is how long the signal is held before the servo is released.
	Settle time.Duration
}

// Servo implements lock.Actuator. Moves are serialized.
type Servo struct {
	// pin outputs the control signal.
	pin PWMPin
	// opts holds angles and settle time.
	opts Options
	// mu serializes moves.
	mu sync.Mutex
}

// Open resolves the named PWM pin.
func Open(name string, opts Options) (*Servo, error) {
	pin, err := board.Pin(name)
	if err != nil {
		return nil, err
	}

	return New(pin, opts), nil
}

// New wraps pin.
func New(pin PWMPin, opts Options) *Servo {
	return &Servo{
		pin:  pin,
		opts: opts,
	}
}

// Duty maps an angle in [0, 180] to the PWM duty cycle: 2% at 0° to 12% at 180°.
func Duty(angle float64) gpio.Duty {
	percent := angle/18 + 2

	return gpio.Duty(float64(gpio.DutyMax) * percent / 100)
}

// Set moves the bolt, holds the signal for the settle time, then stops driving
// the servo so it does not jitter. The move is not interrupted by ctx.
func (s *Servo) Set(_ context.Context, position lock.Position) error {
	var angle float64

	switch position {
	case lock.Locked:
		angle = s.opts.LockedAngle
	case lock.Unlocked:
		angle = s.opts.UnlockedAngle
	default:
		return fmt.Errorf("move servo to %s: %w", position, lock.ErrActuatorFailed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pin.PWM(Duty(angle), Frequency); err != nil {
		return fmt.Errorf("move servo to %.0f°: %w", angle, err)
	}

	time.Sleep(s.opts.Settle)

	if err := s.pin.PWM(0, Frequency); err != nil {
		return fmt.Errorf("release servo: %w", err)
	}

	return nil
}

// Release stops the PWM signal.
func (s *Servo) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pin.PWM(0, Frequency)
}

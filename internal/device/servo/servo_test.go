package servo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/oshokin/smart-lock/internal/domain/lock"
)

var errPWM = errors.New("pwm unavailable")

type pwmCall struct {
	duty gpio.Duty
	freq physic.Frequency
}

type fakePin struct {
	calls []pwmCall
	err   error
}

func (p *fakePin) PWM(duty gpio.Duty, f physic.Frequency) error {
	if p.err != nil {
		return p.err
	}

	p.calls = append(p.calls, pwmCall{duty: duty, freq: f})

	return nil
}

// TestDuty maps the end points of the servo range.
func TestDuty(t *testing.T) {
	t.Parallel()

	require.Equal(t, gpio.DutyMax*2/100, Duty(0))
	require.Equal(t, gpio.DutyMax*12/100, Duty(180))
	require.Equal(t, gpio.DutyMax*7/100, Duty(90))
}

// TestSet drives the angle then releases the signal.
func TestSet(t *testing.T) {
	t.Parallel()

	pin := &fakePin{}
	s := New(pin, Options{LockedAngle: 0, UnlockedAngle: 180})

	require.NoError(t, s.Set(context.Background(), lock.Unlocked))
	require.NoError(t, s.Set(context.Background(), lock.Locked))

	require.Equal(t, []pwmCall{
		{duty: Duty(180), freq: Frequency},
		{duty: 0, freq: Frequency},
		{duty: Duty(0), freq: Frequency},
		{duty: 0, freq: Frequency},
	}, pin.calls)
}

// TestSet_Errors rejects unknown positions and wraps pin failures.
func TestSet_Errors(t *testing.T) {
	t.Parallel()

	s := New(&fakePin{}, Options{})
	require.ErrorIs(t, s.Set(context.Background(), lock.PositionUnknown), lock.ErrActuatorFailed)

	broken := New(&fakePin{err: errPWM}, Options{})
	require.ErrorIs(t, broken.Set(context.Background(), lock.Locked), errPWM)
	require.ErrorIs(t, broken.Release(), errPWM)
}

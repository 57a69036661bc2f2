package ultrasonic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/oshokin/smart-lock/internal/domain/presence"
)

// edge is a scripted level change after a delay.
type edge struct {
	after time.Duration
	level gpio.Level
}

// scriptedEcho replays edges against a manual clock.
type scriptedEcho struct {
	clock *time.Time
	level gpio.Level
	edges []edge
	pull  gpio.Pull
	mode  gpio.Edge
}

func (e *scriptedEcho) In(pull gpio.Pull, mode gpio.Edge) error {
	e.pull = pull
	e.mode = mode

	return nil
}

func (e *scriptedEcho) WaitForEdge(timeout time.Duration) bool {
	if len(e.edges) == 0 || e.edges[0].after > timeout {
		*e.clock = e.clock.Add(timeout)
		return false
	}

	next := e.edges[0]
	e.edges = e.edges[1:]
	*e.clock = e.clock.Add(next.after)
	e.level = next.level

	return true
}

func (e *scriptedEcho) Read() gpio.Level {
	return e.level
}

type recordingTrigger struct {
	levels []gpio.Level
}

func (t *recordingTrigger) Out(level gpio.Level) error {
	t.levels = append(t.levels, level)
	return nil
}

func newScripted(edges ...edge) (*Sensor, *recordingTrigger, *scriptedEcho) {
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	trigger := &recordingTrigger{}
	echo := &scriptedEcho{clock: &clock, edges: edges}

	sensor, err := New(trigger, echo, 100*time.Millisecond, func() time.Time { return clock })
	if err != nil {
		panic(err)
	}

	return sensor, trigger, echo
}

// TestMeasure converts the echo width into inches.
func TestMeasure(t *testing.T) {
	t.Parallel()

	// 1ms of echo is 17.15cm, about 6.75 inches.
	sensor, trigger, echo := newScripted(
		edge{after: 200 * time.Microsecond, level: gpio.High},
		edge{after: time.Millisecond, level: gpio.Low},
	)

	distance, err := sensor.Measure(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 6.752, distance, 0.001)
	require.Equal(t, []gpio.Level{gpio.Low, gpio.High, gpio.Low}, trigger.levels)
	require.Equal(t, gpio.PullDown, echo.pull)
	require.Equal(t, gpio.BothEdges, echo.mode)
}

// TestMeasure_Timeouts reports missing edges as sensor timeouts.
func TestMeasure_Timeouts(t *testing.T) {
	t.Parallel()

	noEcho, _, _ := newScripted()
	_, err := noEcho.Measure(context.Background())
	require.ErrorIs(t, err, presence.ErrSensorTimeout)

	stuckHigh, _, _ := newScripted(edge{after: time.Millisecond, level: gpio.High})
	_, err = stuckHigh.Measure(context.Background())
	require.ErrorIs(t, err, presence.ErrSensorTimeout)

	tooLate, _, _ := newScripted(edge{after: 150 * time.Millisecond, level: gpio.High})
	_, err = tooLate.Measure(context.Background())
	require.ErrorIs(t, err, presence.ErrSensorTimeout)
}

// TestMeasure_CanceledContext does not touch the pins.
func TestMeasure_CanceledContext(t *testing.T) {
	t.Parallel()

	sensor, trigger, _ := newScripted()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sensor.Measure(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, trigger.levels, 1)
}

// TestInches round-trips a known distance.
func TestInches(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 0, Inches(0), 1e-9)

	nanos := 15 / (halfSpeedOfSound * inchesPerCentimeter) * float64(time.Second)
	require.InDelta(t, 15.0, Inches(time.Duration(nanos)), 1e-3)
}

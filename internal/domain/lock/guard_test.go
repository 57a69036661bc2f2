package lock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errJammed = errors.New("servo jammed")

// recordingActuator records every position it receives.
type recordingActuator struct {
	// mu protects calls.
	mu sync.Mutex
	// calls holds the received positions in order.
	calls []Position
	// err is returned from every Set call when not nil.
	err error
}

// Set records the position and returns the configured error.
func (r *recordingActuator) Set(_ context.Context, position Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, position)

	return r.err
}

// TestGuard_IdempotentSet verifies repeated identical positions reach the hardware once.
func TestGuard_IdempotentSet(t *testing.T) {
	t.Parallel()

	hw := new(recordingActuator)
	g := NewGuard(hw)
	require.Equal(t, PositionUnknown, g.Position())

	require.NoError(t, g.Set(context.Background(), Locked))
	require.NoError(t, g.Set(context.Background(), Locked))
	require.NoError(t, g.Set(context.Background(), Unlocked))
	require.NoError(t, g.Set(context.Background(), Locked))

	require.Equal(t, []Position{Locked, Unlocked, Locked}, hw.calls)
	require.Equal(t, Locked, g.Position())
}

// TestGuard_FailureMakesStateUnknown checks that a failed movement is retried on the next Set.
func TestGuard_FailureMakesStateUnknown(t *testing.T) {
	t.Parallel()

	hw := &recordingActuator{err: errJammed}
	g := NewGuard(hw)

	err := g.Set(context.Background(), Locked)
	require.ErrorIs(t, err, ErrActuatorFailed)
	require.ErrorIs(t, err, errJammed)
	require.Equal(t, PositionUnknown, g.Position())

	hw.err = nil

	require.NoError(t, g.Set(context.Background(), Locked))
	require.Equal(t, []Position{Locked, Locked}, hw.calls)
	require.Equal(t, Locked, g.Position())
}

// TestGuard_RejectsUnknown ensures only concrete positions are accepted.
func TestGuard_RejectsUnknown(t *testing.T) {
	t.Parallel()

	hw := new(recordingActuator)
	g := NewGuard(hw)

	require.ErrorIs(t, g.Set(context.Background(), PositionUnknown), ErrActuatorFailed)
	require.Empty(t, hw.calls)
}

// TestGuard_ConcurrentWriters ensures concurrent Set calls are serialized and the state stays consistent.
func TestGuard_ConcurrentWriters(t *testing.T) {
	t.Parallel()

	hw := new(recordingActuator)
	g := NewGuard(hw)

	var wg sync.WaitGroup

	for i := range 50 {
		position := Locked
		if i%2 == 0 {
			position = Unlocked
		}

		wg.Go(func() {
			assert.NoError(t, g.Set(context.Background(), position))
		})
	}

	wg.Wait()

	require.NotEmpty(t, hw.calls)
	require.Equal(t, hw.calls[len(hw.calls)-1], g.Position())

	for i := 1; i < len(hw.calls); i++ {
		require.NotEqual(t, hw.calls[i-1], hw.calls[i], "consecutive identical positions must be skipped")
	}
}

// TestGuard_ShutdownLocksAndRejectsLaterSets leaves the door locked for good.
func TestGuard_ShutdownLocksAndRejectsLaterSets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hw := new(recordingActuator)
	g := NewGuard(hw)

	require.NoError(t, g.Set(ctx, Unlocked))
	require.NoError(t, g.Shutdown(ctx))
	require.Equal(t, Locked, g.Position())

	err := g.Set(ctx, Unlocked)
	require.ErrorIs(t, err, ErrGuardClosed)
	require.Equal(t, Locked, g.Position())
	require.Equal(t, []Position{Unlocked, Locked}, hw.calls)

	// Already locked: nothing more reaches the hardware.
	require.NoError(t, g.Shutdown(ctx))
	require.Equal(t, []Position{Unlocked, Locked}, hw.calls)
}

// TestGuard_ShutdownFailure reports the actuator error and still seals the guard.
func TestGuard_ShutdownFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hw := &recordingActuator{err: errJammed}
	g := NewGuard(hw)

	err := g.Shutdown(ctx)
	require.ErrorIs(t, err, ErrActuatorFailed)
	require.ErrorIs(t, err, errJammed)
	require.Equal(t, PositionUnknown, g.Position())

	require.ErrorIs(t, g.Set(ctx, Unlocked), ErrGuardClosed)
}

package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrActuatorFailed classifies a failed lock movement. The physical position is
// unknown until the next successful Set.
var ErrActuatorFailed = errors.New("actuator failed")

// ErrGuardClosed is returned by Set once Shutdown has run.
var ErrGuardClosed = errors.New("lock guard is shut down")

// Actuator moves the physical lock.
type Actuator interface {
	Set(ctx context.Context, position Position) error
}

// Guard serializes access to an Actuator and remembers the last applied position.
type Guard struct {
	// actuator is the wrapped hardware driver.
	actuator Actuator
	// current is the last position applied successfully.
	current Position
	// closed rejects further movements after Shutdown.
	closed bool
	// mu serializes Set calls and protects current and closed.
	mu sync.Mutex
}

// NewGuard wraps actuator.
func NewGuard(actuator Actuator) *Guard {
	return &Guard{
		actuator: actuator,
	}
}

// Set moves the lock to position. Setting the position already applied is a
// no-op. Callers are serialized, so the last caller to return wins.
func (g *Guard) Set(ctx context.Context, position Position) error {
	if position != Locked && position != Unlocked {
		return fmt.Errorf("set %s: %w", position, ErrActuatorFailed)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("set %s: %w", position, ErrGuardClosed)
	}

	if g.current == position {
		return nil
	}

	if err := g.actuator.Set(ctx, position); err != nil {
		g.current = PositionUnknown

		return fmt.Errorf("set %s: %w: %w", position, ErrActuatorFailed, err)
	}

	g.current = position

	return nil
}

// Shutdown drives the lock to Locked and rejects every later Set. It waits for
// a movement already in progress, so nothing can unlock the door after it returns.
func (g *Guard) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closed = true

	if g.current == Locked {
		return nil
	}

	if err := g.actuator.Set(ctx, Locked); err != nil {
		g.current = PositionUnknown

		return fmt.Errorf("shutdown: %w: %w", ErrActuatorFailed, err)
	}

	g.current = Locked

	return nil
}

// Position returns the last position applied successfully.
func (g *Guard) Position() Position {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.current
}

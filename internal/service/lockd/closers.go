package lockd

import (
	"context"

	"github.com/oshokin/smart-lock/internal/logger"
)

// closer is a named cleanup step.
type closer struct {
	name string
	fn   func() error
}

// closerStack runs cleanup steps in reverse order of registration.
type closerStack struct {
	steps []closer
}

func (s *closerStack) push(name string, fn func() error) {
	s.steps = append(s.steps, closer{name: name, fn: fn})
}

func (s *closerStack) closeAll(ctx context.Context) {
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.fn(); err != nil {
			logger.WarnKV(ctx, "Cleanup failed", "resource", step.name, "error", err)
		}
	}

	s.steps = nil
}

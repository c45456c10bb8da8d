package session

import (
	"context"

	"go.uber.org/zap"
)

// sagaStep is one committed step with its undo. Compensation is best-effort
// sequential unwind, not a distributed transaction.
type sagaStep struct {
	name       string
	compensate func(ctx context.Context) error
}

// saga records committed steps so a later failure can unwind them in reverse
// order. Compensation failures are logged separately; the caller always
// receives the original error.
type saga struct {
	steps  []sagaStep
	logger *zap.Logger
}

func newSaga(logger *zap.Logger) *saga {
	return &saga{logger: logger}
}

// committed registers a completed step and its compensating action.
func (s *saga) committed(name string, compensate func(ctx context.Context) error) {
	s.steps = append(s.steps, sagaStep{name: name, compensate: compensate})
}

// unwind runs compensations in reverse order of commit.
func (s *saga) unwind(ctx context.Context) {
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.compensate(ctx); err != nil {
			s.logger.Error("saga compensation failed",
				zap.String("step", step.name),
				zap.Error(err),
			)
		}
	}
}

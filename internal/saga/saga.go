package saga

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SagaStep represents a single step in a saga with execute and compensate actions.
type SagaStep struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga orchestrates a sequence of steps with compensating transactions on failure.
type Saga struct {
	name   string
	steps  []SagaStep
	logger *zap.Logger
}

// NewSaga creates a new saga orchestrator.
func NewSaga(name string, logger *zap.Logger) *Saga {
	return &Saga{
		name:   name,
		steps:  make([]SagaStep, 0),
		logger: logger,
	}
}

// AddStep appends a step to the saga.
func (s *Saga) AddStep(step SagaStep) {
	s.steps = append(s.steps, step)
}

// Execute runs all saga steps in order. On failure, it compensates executed steps in reverse order.
func (s *Saga) Execute(ctx context.Context) error {
	s.logger.Info("saga started", zap.String("saga", s.name))

	executedSteps := make([]SagaStep, 0, len(s.steps))

	for _, step := range s.steps {
		s.logger.Info("executing saga step",
			zap.String("saga", s.name),
			zap.String("step", step.Name),
		)

		if err := step.Execute(ctx); err != nil {
			s.logger.Error("saga step failed, starting compensation",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
			s.compensate(ctx, executedSteps)
			return fmt.Errorf("saga '%s' failed at step '%s': %w", s.name, step.Name, err)
		}

		executedSteps = append(executedSteps, step)
	}

	s.logger.Info("saga completed successfully", zap.String("saga", s.name))
	return nil
}

func (s *Saga) compensate(ctx context.Context, executed []SagaStep) {
	for i := len(executed) - 1; i >= 0; i-- {
		step := executed[i]
		if step.Compensate == nil {
			continue
		}
		s.logger.Info("compensating saga step",
			zap.String("saga", s.name),
			zap.String("step", step.Name),
		)
		if err := step.Compensate(ctx); err != nil {
			s.logger.Error("compensation failed",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
		}
	}
}

package txn

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"go.uber.org/zap"
)

const rollbackTimeout = 10 * time.Second

// Steps sequences the named steps of one operation. When a step fails the
// undo functions of the steps already applied run in reverse order, and the
// returned error names the failed step.
type Steps struct {
	op   string
	log  *zap.Logger
	done []applied
}

type applied struct {
	name string
	undo func(ctx context.Context) error
}

// NewSteps starts a step sequence for op.
func NewSteps(op string, log *zap.Logger) *Steps {
	if log == nil {
		log = zap.NewNop()
	}
	return &Steps{op: op, log: log}
}

// Do runs one step. undo may be nil when the step has nothing to revert.
func (s *Steps) Do(ctx context.Context, name string, do, undo func(ctx context.Context) error) error {
	if err := do(ctx); err != nil {
		rbErr := s.Rollback(ctx)
		s.log.Warn("step failed",
			zap.String("op", s.op),
			zap.String("step", name),
			zap.Error(err),
			zap.NamedError("rollback_error", rbErr))
		return apperr.StepFailed(s.op, name, err, rbErr)
	}
	s.done = append(s.done, applied{name: name, undo: undo})
	return nil
}

// Rollback reverts every applied step, newest first. It is safe to call
// more than once; each undo runs at most once. Inside a transaction the
// undo functions are skipped: aborting the transaction reverts the steps.
func (s *Steps) Rollback(ctx context.Context) error {
	if len(s.done) == 0 {
		return nil
	}
	if InTransaction(ctx) {
		s.done = nil
		return nil
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	var errs []error
	for i := len(s.done) - 1; i >= 0; i-- {
		a := s.done[i]
		if a.undo == nil {
			continue
		}
		if err := a.undo(rctx); err != nil {
			s.log.Error("undo failed",
				zap.String("op", s.op),
				zap.String("step", a.name),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	s.done = nil
	return errors.Join(errs...)
}

// Applied returns the names of the steps applied so far.
func (s *Steps) Applied() []string {
	out := make([]string, 0, len(s.done))
	for _, a := range s.done {
		out = append(out, a.name)
	}
	return out
}

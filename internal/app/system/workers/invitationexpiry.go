package workers

import (
	"context"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/metrics"
	"go.uber.org/zap"
)

// DueExpirer marks past-due invitations expired.
type DueExpirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// InvitationExpiry periodically resolves invitations whose deadline has
// passed, so watchers and listings drop them.
type InvitationExpiry struct {
	*runner
	ledger DueExpirer
}

func NewInvitationExpiry(ledger DueExpirer, m *metrics.Metrics, logger *zap.Logger, interval time.Duration) *InvitationExpiry {
	w := &InvitationExpiry{ledger: ledger}
	w.runner = newRunner("invitation_expiry", interval, m, logger, w.expire)
	return w
}

func (w *InvitationExpiry) expire(ctx context.Context) error {
	n, err := w.ledger.ExpireDue(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		w.log.Info("expired invitations", zap.Int("count", n))
	}
	return nil
}

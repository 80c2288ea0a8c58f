// internal/app/system/workers/oauthcleanup.go
package workers

import (
	"context"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/metrics"
	"go.uber.org/zap"
)

// ExpiredStateCleaner removes OAuth states past their expiry.
type ExpiredStateCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// OAuthStateCleanup backs up the TTL index on OAuth states, which Mongo
// only applies about once a minute and not at all while an index build
// is pending.
type OAuthStateCleanup struct {
	*runner
	states ExpiredStateCleaner
}

func NewOAuthStateCleanup(states ExpiredStateCleaner, m *metrics.Metrics, logger *zap.Logger, interval time.Duration) *OAuthStateCleanup {
	w := &OAuthStateCleanup{states: states}
	w.runner = newRunner("oauth_state_cleanup", interval, m, logger, w.cleanup)
	return w
}

func (w *OAuthStateCleanup) cleanup(ctx context.Context) error {
	n, err := w.states.CleanupExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		w.log.Debug("removed expired OAuth states", zap.Int64("count", n))
	}
	return nil
}

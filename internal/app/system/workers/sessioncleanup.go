// internal/app/system/workers/sessioncleanup.go
package workers

import (
	"context"
	"time"

	sessionstore "github.com/dalemusser/taskhub/internal/app/store/sessions"
	"github.com/dalemusser/taskhub/internal/app/system/metrics"
	"go.uber.org/zap"
)

// InactiveCloser closes session records idle longer than threshold and
// returns their tokens.
type InactiveCloser interface {
	CloseInactive(ctx context.Context, threshold time.Duration) ([]string, error)
}

// SessionExpirer ends the live sessions behind tokens.
type SessionExpirer interface {
	Expire(ctx context.Context, tokens []string, reason string) int
}

// SessionCleanup closes inactive sessions, both the stored record and the
// live active-context session with its subscriptions.
type SessionCleanup struct {
	*runner
	sessions          InactiveCloser
	live              SessionExpirer
	inactiveThreshold time.Duration
}

// NewSessionCleanup creates a new session cleanup worker.
//
// Parameters:
//   - sessions: the session log
//   - live: the active-context manager
//   - interval: how often to run cleanup (e.g., 1 minute)
//   - inactiveThreshold: how long a session must be inactive before closing (e.g., 30 minutes)
func NewSessionCleanup(sessions InactiveCloser, live SessionExpirer, m *metrics.Metrics, logger *zap.Logger, interval, inactiveThreshold time.Duration) *SessionCleanup {
	w := &SessionCleanup{sessions: sessions, live: live, inactiveThreshold: inactiveThreshold}
	w.runner = newRunner("session_cleanup", interval, m, logger, w.cleanup)
	return w
}

func (w *SessionCleanup) cleanup(ctx context.Context) error {
	tokens, err := w.sessions.CloseInactive(ctx, w.inactiveThreshold)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}
	closed := 0
	if w.live != nil {
		closed = w.live.Expire(ctx, tokens, sessionstore.EndInactive)
	}
	w.log.Info("closed inactive sessions",
		zap.Int("count", len(tokens)),
		zap.Int("live", closed))
	return nil
}

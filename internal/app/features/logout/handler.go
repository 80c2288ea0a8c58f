// internal/app/features/logout/handler.go
package logout

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// SessionEnder ends the active-context session behind a token.
type SessionEnder interface {
	End(ctx context.Context, token string) error
}

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	Contexts   SessionEnder
	AuditLog   *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, contexts SessionEnder, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		Contexts:   contexts,
		AuditLog:   audit,
	}
}

// ServeLogout handles POST /logout. The cookie is always cleared; the
// active context of the session is ended and its saved choice forgotten.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	u, err := h.SessionMgr.SignOut(w, r)
	if err != nil {
		if !errors.Is(err, auth.ErrNoSession) {
			h.Log.Error("logout: save session", zap.Error(err))
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if h.Contexts != nil {
		if err := h.Contexts.End(ctx, u.Token); err != nil {
			h.Log.Warn("logout: ending session failed", zap.Error(err), zap.String("user_id", u.ID))
		}
	}
	h.AuditLog.Logout(ctx, r, u.ID)

	w.WriteHeader(http.StatusNoContent)
}

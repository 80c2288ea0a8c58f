// internal/app/features/heartbeat/handler.go
package heartbeat

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"go.uber.org/zap"
)

// Handler keeps a browser session alive. A session closed by the idle
// sweep is reopened on the next heartbeat.
type Handler struct {
	Sessions *shared.Sessions
	Log      *zap.Logger
}

func NewHandler(sessions *shared.Sessions, logger *zap.Logger) *Handler {
	return &Handler{Sessions: sessions, Log: logger}
}

type response struct {
	Generation uint64 `json:"generation"`
	Pending    int    `json:"pending_invitations"`
}

// ServeHeartbeat handles POST /api/heartbeat.
func (h *Handler) ServeHeartbeat(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.For(r)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	ctx, cancel := shared.Ctx(r)
	defer cancel()
	if err := sess.Heartbeat(ctx); err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}

	out := response{Generation: sess.Generation()}
	if iw := sess.Invitations(); iw != nil {
		out.Pending = len(iw.Pending())
	}
	shared.JSON(w, http.StatusOK, out)
}

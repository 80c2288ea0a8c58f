package userinfo

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/activectx"
	"github.com/dalemusser/taskhub/internal/app/services/invitations"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves the signed-in user's identity and session state.
type Handler struct {
	Sessions *shared.Sessions
	Log      *zap.Logger
}

func NewHandler(sessions *shared.Sessions, logger *zap.Logger) *Handler {
	return &Handler{Sessions: sessions, Log: logger}
}

type meResponse struct {
	User               models.User        `json:"user"`
	Context            shared.ContextView `json:"context"`
	PendingInvitations int                `json:"pending_invitations"`
	Badge              string             `json:"badge,omitempty"`
}

// ServeMe handles GET /api/me.
//
//	{ "user":{…}, "context":{"personal":true,"workspace_id":"…","role":"owner","generation":1},
//	  "pending_invitations":2, "badge":"2" }
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.For(r)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, describe(sess))
}

func describe(sess *activectx.Session) meResponse {
	resp := meResponse{User: sess.User(), Context: shared.Describe(sess)}
	if w := sess.Invitations(); w != nil {
		resp.PendingInvitations = len(w.Pending())
		resp.Badge = invitations.Badge(resp.PendingInvitations)
	}
	return resp
}

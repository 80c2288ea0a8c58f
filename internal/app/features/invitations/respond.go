// internal/app/features/invitations/respond.go
package invitations

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/activectx"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// HandleAccept handles POST /api/invitations/{id}/accept.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	invID, err := shared.ObjectID(r, "id")
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	h.accept(w, r, func(ctx context.Context, userID string) (primitive.ObjectID, error) {
		return h.Invitations.Accept(ctx, invID, userID)
	})
}

// HandleAcceptToken handles POST /api/invitations/token/{token}/accept for
// a signed-in user following an invite link.
func (h *Handler) HandleAcceptToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	h.accept(w, r, func(ctx context.Context, userID string) (primitive.ObjectID, error) {
		return h.Invitations.AcceptByToken(ctx, token, userID)
	})
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request, do func(context.Context, string) (primitive.ObjectID, error)) {
	var in acceptRequest
	if err := shared.Decode(w, r, &in); err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	sess, err := h.Sessions.For(r)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	ctx, cancel := shared.Ctx(r)
	defer cancel()

	wsID, err := do(ctx, sess.User().ID)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	// The invitation is accepted from here on; a failed switch is reported
	// in the body.
	resp := acceptResponse{WorkspaceID: wsID}
	if in.Switch {
		if err := sess.SwitchTo(ctx, activectx.Shared(wsID)); err != nil {
			h.Log.Warn("switch after accept failed",
				zap.String("workspace_id", wsID.Hex()), zap.Error(err))
			resp.SwitchError = string(apperr.KindOf(err))
		}
		cur := shared.Describe(sess)
		resp.Context = &cur
	}
	shared.JSON(w, http.StatusOK, resp)
}

// HandleReject handles POST /api/invitations/{id}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	u, err := shared.Caller(r)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	invID, err := shared.ObjectID(r, "id")
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	ctx, cancel := shared.Ctx(r)
	defer cancel()
	if err := h.Invitations.Reject(ctx, invID, u.ID); err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

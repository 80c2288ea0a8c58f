// internal/app/features/workspaces/leave.go
package workspaces

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/activectx"
)

// HandleLeave handles POST /api/workspaces/{id}/leave. Owners cannot
// leave. When the caller was looking at the workspace the session moves
// to Personal before responding.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	wsID, err := shared.ObjectID(r, "id")
	if err != nil {
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

	if err := h.Members.LeaveWorkspace(ctx, sess.User().ID, wsID); err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	if _, cur, _ := sess.Current(); cur == wsID {
		if err := sess.SwitchTo(ctx, activectx.Personal()); err != nil {
			uierrors.Write(w, h.Log, err)
			return
		}
	}
	shared.JSON(w, http.StatusOK, shared.Describe(sess))
}

// HandleFavorite handles POST /api/workspaces/{id}/favorite.
func (h *Handler) HandleFavorite(w http.ResponseWriter, r *http.Request) {
	u, err := shared.Caller(r)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	wsID, err := shared.ObjectID(r, "id")
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	in := favoriteRequest{Favorite: true}
	if err := shared.Decode(w, r, &in); err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}

	ctx, cancel := shared.Ctx(r)
	defer cancel()
	if err := h.Members.SetFavorite(ctx, u.ID, wsID, in.Favorite); err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, in)
}

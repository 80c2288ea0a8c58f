// internal/app/features/workspaces/list.go
package workspaces

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/activectx"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.uber.org/zap"
)

// ServeList handles GET /api/workspaces: every workspace the caller is an
// active member of, favorites first, plus the active context.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.For(r)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	ctx, cancel := shared.Ctx(r)
	defer cancel()

	entries, err := h.Members.ListWorkspacesForUser(ctx, sess.User().ID)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	cur := shared.Describe(sess)
	shared.JSON(w, http.StatusOK, listResponse{Workspaces: entries, Current: &cur})
}

// HandleCreate handles POST /api/workspaces. The caller becomes owner.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in createRequest
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

	ws, err := h.Workspaces.Create(ctx, sess.User(), in.Name, in.Description)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	h.Log.Info("workspace created",
		zap.String("workspace_id", ws.ID.Hex()),
		zap.String("owner_id", ws.OwnerID))

	resp := workspaceResponse{Workspace: ws, Role: models.RoleOwner}
	if in.Switch {
		if err := sess.SwitchTo(ctx, activectx.Shared(ws.ID)); err != nil {
			uierrors.Write(w, h.Log, err)
			return
		}
		cur := shared.Describe(sess)
		resp.Context = &cur
	}
	shared.JSON(w, http.StatusCreated, resp)
}

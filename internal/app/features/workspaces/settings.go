// internal/app/features/workspaces/settings.go
package workspaces

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/workspaces"
)

// HandleUpdate handles PATCH /api/workspaces/{id}. Owner or admin only;
// omitted fields are left alone.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
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
	var in updateRequest
	if err := shared.Decode(w, r, &in); err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}

	ctx, cancel := shared.Ctx(r)
	defer cancel()
	ws, err := h.Workspaces.UpdateSettings(ctx, u.ID, wsID, workspaces.Patch{
		Name:        in.Name,
		Description: in.Description,
		Settings:    in.Settings,
	})
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, workspaceResponse{Workspace: ws})
}

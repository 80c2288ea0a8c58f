// internal/app/features/workspaces/delete.go
package workspaces

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// HandleDelete handles DELETE /api/workspaces/{id}. Owner only. Sessions
// looking at the workspace fall back to Personal when the removal event
// reaches them.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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

	// The cascade touches every scoped collection.
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "workspace delete")
	defer cancel()
	if err := h.Workspaces.Delete(ctx, wsID, u.ID); err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	h.Log.Info("workspace deleted", zap.String("workspace_id", wsID.Hex()), zap.String("by", u.ID))
	w.WriteHeader(http.StatusNoContent)
}

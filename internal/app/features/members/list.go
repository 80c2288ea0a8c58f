// internal/app/features/members/list.go
package members

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/domain/models"
)

type listResponse struct {
	Members []models.Membership `json:"members"`
}

// ServeList handles GET /api/workspaces/{id}/members. Any active member
// may list; the owner comes first.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := shared.Ctx(r)
	defer cancel()
	ms, err := h.Members.ListMembers(ctx, u.ID, wsID)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	if ms == nil {
		ms = []models.Membership{}
	}
	shared.JSON(w, http.StatusOK, listResponse{Members: ms})
}

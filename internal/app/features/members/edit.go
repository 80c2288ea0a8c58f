// internal/app/features/members/edit.go
package members

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.uber.org/zap"
)

type roleRequest struct {
	Role models.Role `json:"role"`
}

// HandleSetRole handles PATCH /api/members/{id}.
func (h *Handler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	u, err := shared.Caller(r)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	memberID, err := shared.ObjectID(r, "id")
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	var in roleRequest
	if err := shared.Decode(w, r, &in); err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}

	ctx, cancel := shared.Ctx(r)
	defer cancel()
	m, err := h.Members.SetRole(ctx, u.ID, memberID, in.Role)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, m)
}

// HandleRemove handles DELETE /api/members/{id}. The removed user's
// sessions leave the workspace when the membership event reaches them.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	u, err := shared.Caller(r)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	memberID, err := shared.ObjectID(r, "id")
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}

	ctx, cancel := shared.Ctx(r)
	defer cancel()
	if err := h.Members.RemoveMember(ctx, u.ID, memberID); err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	h.Log.Info("member removed", zap.String("membership_id", memberID.Hex()), zap.String("by", u.ID))
	w.WriteHeader(http.StatusNoContent)
}

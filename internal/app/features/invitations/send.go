// internal/app/features/invitations/send.go
package invitations

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/invitations"
)

// HandleSend handles POST /api/invitations.
//
//	{ "target":"bob@example.com", "workspace_id":"…", "role":"member", "message":"…" }
//
// Without workspace_id the invitation is direct and accepting it opens the
// pair workspace of the two users.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	u, err := shared.Caller(r)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	var in sendRequest
	if err := shared.Decode(w, r, &in); err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	wsID, err := shared.OptionalObjectID("workspace_id", in.WorkspaceID)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}

	ctx, cancel := shared.Ctx(r)
	defer cancel()
	inv, err := h.Invitations.Send(ctx, invitations.SendInput{
		InviterID:   u.ID,
		Target:      in.Target,
		WorkspaceID: wsID,
		Role:        in.Role,
		Message:     in.Message,
	})
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusCreated, sendResponse{Invitation: inv, Link: h.Invitations.Link(inv)})
}

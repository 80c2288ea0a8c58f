// internal/app/features/invitations/list.go
package invitations

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/invitations"
	"github.com/dalemusser/taskhub/internal/domain/models"
)

// ServeInbox handles GET /api/invitations: pending invitations addressed
// to the caller, newest first, and the ones they sent.
func (h *Handler) ServeInbox(w http.ResponseWriter, r *http.Request) {
	u, err := shared.Caller(r)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	ctx, cancel := shared.Ctx(r)
	defer cancel()

	pending, err := h.Invitations.ListPendingFor(ctx, u.ID, u.Email)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	sent, err := h.Invitations.ListSent(ctx, u.ID)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, inboxResponse{
		Pending: orEmpty(pending),
		Sent:    orEmpty(sent),
		Badge:   invitations.Badge(len(pending)),
	})
}

// ServeWorkspaceList handles GET /api/workspaces/{id}/invitations. Owner
// and admin only.
func (h *Handler) ServeWorkspaceList(w http.ResponseWriter, r *http.Request) {
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

	invs, err := h.Invitations.ListForWorkspace(ctx, u.ID, wsID)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, workspaceListResponse{Invitations: orEmpty(invs)})
}

// HandleView handles POST /api/invitations/view. While the list is open
// on screen the session's watcher holds back new-invitation alerts.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	var in viewRequest
	if err := shared.Decode(w, r, &in); err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	sess, err := h.Sessions.For(r)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	if iw := sess.Invitations(); iw != nil {
		iw.SetListOpen(in.Open)
	}
	shared.JSON(w, http.StatusOK, in)
}

func orEmpty(invs []models.Invitation) []models.Invitation {
	if invs == nil {
		return []models.Invitation{}
	}
	return invs
}

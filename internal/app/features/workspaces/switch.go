// internal/app/features/workspaces/switch.go
package workspaces

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/activectx"
)

// HandleSwitch handles POST /api/workspaces/{id}/switch.
func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	wsID, err := shared.ObjectID(r, "id")
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	h.switchTo(w, r, activectx.Shared(wsID))
}

// HandleSwitchPersonal handles POST /api/workspaces/personal/switch.
func (h *Handler) HandleSwitchPersonal(w http.ResponseWriter, r *http.Request) {
	h.switchTo(w, r, activectx.Personal())
}

// switchTo moves the caller's session to t. A refused switch leaves the
// previous context in place and reports why.
func (h *Handler) switchTo(w http.ResponseWriter, r *http.Request, t activectx.Target) {
	sess, err := h.Sessions.For(r)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	ctx, cancel := shared.Ctx(r)
	defer cancel()
	if err := sess.SwitchTo(ctx, t); err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, shared.Describe(sess))
}

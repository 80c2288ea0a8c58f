// internal/app/features/invitations/routes.go
package invitations

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the invitation routes under /api/invitations. sendLimit
// wraps only the send route.
func Routes(h *Handler, sendLimit ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeInbox)
	r.With(sendLimit...).Post("/", h.HandleSend)
	r.Post("/view", h.HandleView)
	r.Post("/token/{token}/accept", h.HandleAcceptToken)
	r.Post("/{id}/accept", h.HandleAccept)
	r.Post("/{id}/reject", h.HandleReject)

	return r
}

// WorkspaceRoutes registers the per-workspace invitation list on the
// workspace router.
func WorkspaceRoutes(h *Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/{id}/invitations", h.ServeWorkspaceList)
	}
}

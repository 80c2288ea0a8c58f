// internal/app/features/members/routes.go
package members

import "github.com/go-chi/chi/v5"

// Routes mounts the member routes under /api/members.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Patch("/{id}", h.HandleSetRole)
	r.Delete("/{id}", h.HandleRemove)
	return r
}

// WorkspaceRoutes registers the member list on the workspace router.
func WorkspaceRoutes(h *Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/{id}/members", h.ServeList)
	}
}

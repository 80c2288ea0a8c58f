// internal/app/features/workspaces/routes.go
package workspaces

import "github.com/go-chi/chi/v5"

// Routes mounts the workspace routes under /api/workspaces. The caller
// must be signed in; per-workspace permissions are checked by the
// services. nested registers per-workspace routes owned by other
// features, such as /{id}/members.
func Routes(h *Handler, nested ...func(chi.Router)) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	r.Post("/personal/switch", h.HandleSwitchPersonal)

	r.Patch("/{id}", h.HandleUpdate)
	r.Delete("/{id}", h.HandleDelete)
	r.Post("/{id}/switch", h.HandleSwitch)
	r.Post("/{id}/leave", h.HandleLeave)
	r.Post("/{id}/favorite", h.HandleFavorite)

	for _, mount := range nested {
		mount(r)
	}
	return r
}

// internal/app/features/settings/routes.go
package settings

import "github.com/go-chi/chi/v5"

// Routes is mounted under /api/prefs behind RequireSignedIn.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/theme", h.ServeTheme)
	r.Put("/theme", h.HandleSetTheme)
	return r
}

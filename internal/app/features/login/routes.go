// internal/app/features/login/routes.go
package login

import "github.com/go-chi/chi/v5"

// Routes is mounted under /login in the dev environment only.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/dev", h.ServeDevLogin)
	return r
}

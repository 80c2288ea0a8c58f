package userinfo

import "github.com/go-chi/chi/v5"

// Routes is mounted under /api/me behind RequireSignedIn.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeMe)
	return r
}

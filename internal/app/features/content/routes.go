// internal/app/features/content/routes.go
package content

import "github.com/go-chi/chi/v5"

// Register adds the content routes to the /api router.
func Register(r chi.Router, h *Handler) {
	r.Get("/content", h.ServeContent)

	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", h.HandleCreateTask)
		r.Patch("/{id}", h.HandleUpdateTask)
		r.Delete("/{id}", h.HandleDeleteTask)
		r.Post("/{id}/move", h.HandleMoveTask)
	})

	r.Route("/notes", func(r chi.Router) {
		r.Post("/", h.HandleCreateNote)
		r.Patch("/{id}", h.HandleUpdateNote)
		r.Delete("/{id}", h.HandleDeleteNote)
	})

	r.Route("/categories", func(r chi.Router) {
		r.Post("/", h.HandleCreateCategory)
		r.Patch("/{id}", h.HandleUpdateCategory)
		r.Delete("/{id}", h.HandleDeleteCategory)
	})
}

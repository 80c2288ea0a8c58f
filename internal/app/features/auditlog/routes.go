// internal/app/features/auditlog/routes.go
package auditlog

import "github.com/go-chi/chi/v5"

// WorkspaceRoutes registers the audit trail on the workspace router.
func WorkspaceRoutes(h *Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/{id}/audit", h.ServeList)
	}
}

// internal/app/features/workspaces/handler.go
package workspaces

import (
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/members"
	"github.com/dalemusser/taskhub/internal/app/services/workspaces"
	"go.uber.org/zap"
)

// Handler provides the workspace endpoints: the caller's list, create,
// settings, delete, switching the active context, leave and favorites.
type Handler struct {
	Workspaces *workspaces.Service
	Members    *members.Service
	Sessions   *shared.Sessions
	Log        *zap.Logger
}

// NewHandler creates a new workspaces Handler.
func NewHandler(ws *workspaces.Service, mem *members.Service, sessions *shared.Sessions, logger *zap.Logger) *Handler {
	return &Handler{
		Workspaces: ws,
		Members:    mem,
		Sessions:   sessions,
		Log:        logger,
	}
}

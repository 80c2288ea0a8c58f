// internal/app/features/invitations/handler.go
package invitations

import (
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/invitations"
	"go.uber.org/zap"
)

// Handler serves the invitation endpoints: the caller's inbox and sent
// list, sending, answering and the per-workspace list.
type Handler struct {
	Invitations *invitations.Service
	Sessions    *shared.Sessions
	Log         *zap.Logger
}

func NewHandler(svc *invitations.Service, sessions *shared.Sessions, logger *zap.Logger) *Handler {
	return &Handler{Invitations: svc, Sessions: sessions, Log: logger}
}

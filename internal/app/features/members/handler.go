// internal/app/features/members/handler.go
package members

import (
	"github.com/dalemusser/taskhub/internal/app/services/members"
	"go.uber.org/zap"
)

// Handler is the feature-level handler for workspace members.
type Handler struct {
	Members *members.Service
	Log     *zap.Logger
}

func NewHandler(svc *members.Service, logger *zap.Logger) *Handler {
	return &Handler{Members: svc, Log: logger}
}

// internal/app/features/auditlog/handler.go
package auditlog

import (
	"context"

	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Events reads stored audit events.
type Events interface {
	Query(ctx context.Context, f audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, f audit.QueryFilter) (int64, error)
}

// Roles answers the caller's role in a workspace.
type Roles interface {
	GetRole(ctx context.Context, userID string, wsID primitive.ObjectID) (models.Role, error)
}

// Profiles resolves actor and target names.
type Profiles interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

// Handler serves a workspace's audit trail. Events is nil when audit
// records are not stored; the endpoint then answers 503.
type Handler struct {
	Events Events
	Roles  Roles
	Users  Profiles
	Log    *zap.Logger
}

func NewHandler(events Events, roles Roles, users Profiles, logger *zap.Logger) *Handler {
	return &Handler{Events: events, Roles: roles, Users: users, Log: logger}
}

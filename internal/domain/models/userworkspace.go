package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserWorkspace is the per-user index of workspaces, used to list a user's
// workspaces without scanning memberships. Role mirrors the membership.
type UserWorkspace struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       string             `bson:"user_id" json:"user_id"`
	WorkspaceID  primitive.ObjectID `bson:"workspace_id" json:"workspace_id"`
	Role         Role               `bson:"role" json:"role"`
	IsFavorite   bool               `bson:"is_favorite" json:"is_favorite"`
	JoinedAt     time.Time          `bson:"joined_at" json:"joined_at"`
	LastAccessed time.Time          `bson:"last_accessed" json:"last_accessed"`
}

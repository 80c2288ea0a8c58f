package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Membership status values.
const (
	MemberActive  = "active"
	MemberRemoved = "removed"
)

// Membership links one user to one workspace. There is exactly one record
// per (workspace, user); leaving or removal flips Status instead of
// deleting the row so the history survives until the workspace is deleted.
type Membership struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkspaceID primitive.ObjectID `bson:"workspace_id" json:"workspace_id"`
	UserID      string             `bson:"user_id" json:"user_id"`
	Email       string             `bson:"email" json:"email"`
	DisplayName string             `bson:"display_name" json:"display_name"`
	PhotoURL    string             `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
	Role        Role               `bson:"role" json:"role"`
	Status      string             `bson:"status" json:"status"`
	InvitedBy   string             `bson:"invited_by,omitempty" json:"invited_by,omitempty"`

	JoinedAt  time.Time  `bson:"joined_at" json:"joined_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
	RemovedAt *time.Time `bson:"removed_at,omitempty" json:"removed_at,omitempty"`
	RemovedBy string     `bson:"removed_by,omitempty" json:"removed_by,omitempty"`
}

// IsActive reports whether the membership currently grants access.
func (m Membership) IsActive() bool {
	return m.Status == MemberActive
}

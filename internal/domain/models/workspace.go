package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Workspace status values.
const (
	WorkspaceActive   = "active"
	WorkspaceDeleting = "deleting"
)

// Workspace is a named collaborative space. Every user also owns exactly one
// personal workspace that holds their private tasks and notes.
//
// Ownership is fixed at creation. A workspace in the "deleting" state is
// treated as gone by every reader; the cascade that follows removes it.
type Workspace struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	Name        string `bson:"name" json:"name"`
	NameCI      string `bson:"name_ci" json:"-"`
	Description string `bson:"description" json:"description"`
	OwnerID     string `bson:"owner_id" json:"owner_id"`

	// Personal marks the owner's private workspace.
	Personal bool `bson:"personal" json:"personal"`

	// PairKey identifies a workspace created by accepting a direct
	// person-to-person invitation ("shared_<a>_<b>", ids sorted).
	PairKey string `bson:"pair_key,omitempty" json:"pair_key,omitempty"`

	Settings WorkspaceSettings `bson:"settings" json:"settings"`
	Status   string            `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// WorkspaceSettings are the owner-tunable knobs of a workspace.
type WorkspaceSettings struct {
	// AllowMemberInvite lets plain members send invitations.
	AllowMemberInvite bool `bson:"allow_member_invite" json:"allow_member_invite"`
	AllowJoinRequests bool `bson:"allow_join_requests" json:"allow_join_requests"`
	DefaultMemberRole Role `bson:"default_member_role" json:"default_member_role"`
	AutoSync          bool `bson:"auto_sync" json:"auto_sync"`
}

// DefaultWorkspaceSettings returns the settings a new workspace starts with.
func DefaultWorkspaceSettings() WorkspaceSettings {
	return WorkspaceSettings{
		AllowJoinRequests: true,
		DefaultMemberRole: RoleMember,
	}
}

// IsActive reports whether the workspace is visible to readers.
func (w Workspace) IsActive() bool {
	return w.Status == "" || w.Status == WorkspaceActive
}

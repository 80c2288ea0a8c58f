package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Invitation status values. Only pending invitations change; every other
// status is terminal.
const (
	InvitePending  = "pending"
	InviteAccepted = "accepted"
	InviteRejected = "rejected"
	InviteExpired  = "expired"
)

// PersonalTarget is the target key of a direct person-to-person invitation.
// Accepting one creates (or reuses) the pair workspace of the two users.
const PersonalTarget = "personal"

// Invitation is an offer from one user to an email address to join a
// workspace with a proposed role.
type Invitation struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	// WorkspaceID is nil for direct invitations.
	WorkspaceID   *primitive.ObjectID `bson:"workspace_id,omitempty" json:"workspace_id,omitempty"`
	WorkspaceName string              `bson:"workspace_name" json:"workspace_name"`
	// TargetKey is the workspace hex id or PersonalTarget; it backs the
	// one-pending-per-pair index.
	TargetKey string `bson:"target_key" json:"-"`

	InvitedBy    string `bson:"invited_by" json:"invited_by"`
	InviterName  string `bson:"inviter_name" json:"inviter_name"`
	InviterEmail string `bson:"inviter_email" json:"inviter_email"`
	InviterPhoto string `bson:"inviter_photo,omitempty" json:"inviter_photo,omitempty"`

	InvitedEmail string `bson:"invited_email" json:"invited_email"` // folded
	InviteeID    string `bson:"invitee_id,omitempty" json:"invitee_id,omitempty"`

	Role    Role   `bson:"role" json:"role"`
	Message string `bson:"message,omitempty" json:"message,omitempty"`
	Token   string `bson:"token" json:"-"`
	Status  string `bson:"status" json:"status"`

	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	ExpiresAt  time.Time  `bson:"expires_at" json:"expires_at"`
	ResolvedAt *time.Time `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
	ResolvedBy string     `bson:"resolved_by,omitempty" json:"resolved_by,omitempty"`
}

// IsDirect reports whether the invitation targets the pair workspace rather
// than an existing workspace.
func (i Invitation) IsDirect() bool {
	return i.WorkspaceID == nil
}

// IsPending reports whether the invitation is still open at now.
func (i Invitation) IsPending(now time.Time) bool {
	return i.Status == InvitePending && now.Before(i.ExpiresAt)
}

// IsExpired reports whether the invitation's deadline has passed.
func (i Invitation) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// internal/app/features/invitations/types.go
package invitations

import (
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type inboxResponse struct {
	Pending []models.Invitation `json:"pending"`
	Sent    []models.Invitation `json:"sent"`
	Badge   string              `json:"badge,omitempty"`
}

type sendRequest struct {
	// Target is an email address or a user id.
	Target string `json:"target"`
	// WorkspaceID is empty for a direct invitation.
	WorkspaceID string `json:"workspace_id"`
	Role        string `json:"role"`
	Message     string `json:"message"`
}

type sendResponse struct {
	Invitation models.Invitation `json:"invitation"`
	// Link signs the invitee in and accepts; the inviter shares it.
	Link string `json:"link"`
}

type acceptRequest struct {
	// Switch moves the caller's session into the joined workspace.
	Switch bool `json:"switch"`
}

type acceptResponse struct {
	WorkspaceID primitive.ObjectID  `json:"workspace_id"`
	Context     *shared.ContextView `json:"context,omitempty"`
	// SwitchError is the error code of a requested switch that failed.
	SwitchError string              `json:"switch_error,omitempty"`
}

type viewRequest struct {
	Open bool `json:"open"`
}

type workspaceListResponse struct {
	Invitations []models.Invitation `json:"invitations"`
}

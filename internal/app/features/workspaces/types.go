// internal/app/features/workspaces/types.go
package workspaces

import (
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/members"
	"github.com/dalemusser/taskhub/internal/domain/models"
)

type listResponse struct {
	Workspaces []members.Entry     `json:"workspaces"`
	Current    *shared.ContextView `json:"current,omitempty"`
}

type createRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Switch makes the new workspace the active context.
	Switch bool `json:"switch"`
}

type workspaceResponse struct {
	Workspace models.Workspace    `json:"workspace"`
	Role      models.Role         `json:"role,omitempty"`
	Context   *shared.ContextView `json:"context,omitempty"`
}

type updateRequest struct {
	Name        *string                   `json:"name"`
	Description *string                   `json:"description"`
	Settings    *models.WorkspaceSettings `json:"settings"`
}

type favoriteRequest struct {
	Favorite bool `json:"favorite"`
}

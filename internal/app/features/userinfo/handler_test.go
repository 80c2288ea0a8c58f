package userinfo_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/features/userinfo"
	"github.com/dalemusser/taskhub/internal/app/services/invitations"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type me struct {
	User    models.User `json:"user"`
	Context struct {
		Personal    bool        `json:"personal"`
		WorkspaceID string      `json:"workspace_id"`
		Role        models.Role `json:"role"`
		Generation  uint64      `json:"generation"`
	} `json:"context"`
	PendingInvitations int    `json:"pending_invitations"`
	Badge              string `json:"badge"`
}

func TestServeMe(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	alice := env.User(t, "alice", "Alice")
	bob := env.User(t, "bob", "Bob")
	ws, err := env.Workspaces.Create(ctx, bob, "Bob's Team", "")
	require.NoError(t, err)
	_, err = env.Invitations.Send(ctx, invitations.SendInput{
		InviterID: bob.ID, Target: alice.Email, WorkspaceID: &ws.ID, Role: "member",
	})
	require.NoError(t, err)

	h := userinfo.NewHandler(&shared.Sessions{Contexts: env.Contexts, Users: env.DB.Users(), Log: env.Log}, env.Log)
	rec := testutil.NewRecorder()
	h.ServeMe(rec, testutil.NewAuthenticatedRequest(t, "GET", "/api/me", nil, testutil.SignedIn(alice.ID, "Alice")))

	rec.AssertStatus(t, http.StatusOK)
	var got me
	rec.DecodeJSON(t, &got)
	assert.Equal(t, "alice@example.com", got.User.Email)
	assert.True(t, got.Context.Personal)
	assert.Equal(t, models.RoleOwner, got.Context.Role)
	assert.NotEmpty(t, got.Context.WorkspaceID)
	assert.Equal(t, 1, got.PendingInvitations)
	assert.Equal(t, "1", got.Badge)
}

func TestServeMe_NotSignedIn(t *testing.T) {
	env := testutil.NewEnv(t)
	h := userinfo.NewHandler(&shared.Sessions{Contexts: env.Contexts, Users: env.DB.Users(), Log: env.Log}, env.Log)

	rec := testutil.NewRecorder()
	h.ServeMe(rec, testutil.NewRequest("GET", "/api/me"))

	rec.AssertStatus(t, http.StatusForbidden)
}

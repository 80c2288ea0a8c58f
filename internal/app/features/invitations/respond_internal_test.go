package invitations

import (
	"context"
	"net/http"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAccept_SwitchFailureStillReportsAccepted(t *testing.T) {
	env := testutil.NewEnv(t)
	alice := env.User(t, "alice", "Alice")
	bob := env.User(t, "bob", "Bob")
	// Bob is not a member here, so switching into it is refused.
	private, err := env.Workspaces.Create(context.Background(), alice, "Private", "")
	require.NoError(t, err)

	sessions := &shared.Sessions{Contexts: env.Contexts, Users: env.DB.Users(), Log: env.Log}
	h := NewHandler(env.Invitations, sessions, env.Log)

	req := testutil.NewAuthenticatedRequest(t, "POST", "/api/invitations/x/accept", map[string]bool{"switch": true},
		testutil.TestUser{ID: bob.ID, Name: bob.DisplayName, Email: bob.Email, Token: "tok-bob"})
	rec := testutil.NewRecorder()
	h.accept(rec, req, func(context.Context, string) (primitive.ObjectID, error) {
		return private.ID, nil
	})

	rec.AssertStatus(t, http.StatusOK)
	var got acceptResponse
	rec.DecodeJSON(t, &got)
	assert.Equal(t, private.ID, got.WorkspaceID)
	assert.Equal(t, "forbidden", got.SwitchError)
	require.NotNil(t, got.Context)
	assert.True(t, got.Context.Personal, "the session stays where it was")
}

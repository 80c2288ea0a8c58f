package login_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/features/login"
	"github.com/dalemusser/taskhub/internal/app/services/invitations"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T) (*login.Handler, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t)
	flow := &login.Flow{
		Users:    env.DB.Users(),
		Sessions: testutil.SessionManager(t),
		Contexts: env.Contexts,
		Invites:  env.Invitations,
		Log:      env.Log,
	}
	return login.NewHandler(flow, env.Log), env
}

func devLogin(t *testing.T, h *login.Handler, body map[string]string) (*testutil.ResponseRecorder, login.Result) {
	t.Helper()
	rec := testutil.NewRecorder()
	h.ServeDevLogin(rec, testutil.NewJSONRequest(t, "POST", "/login/dev", body))
	var res login.Result
	if rec.Code == http.StatusOK {
		rec.DecodeJSON(t, &res)
	}
	return rec, res
}

func TestServeDevLogin_SignsInToPersonal(t *testing.T) {
	h, env := newHandler(t)

	rec, res := devLogin(t, h, map[string]string{"email": "Alice@Example.com", "name": "Alice"})

	rec.AssertStatus(t, http.StatusOK)
	require.NotNil(t, testutil.Cookie(rec.ResponseRecorder, testutil.SessionCookie), "session cookie")
	assert.Equal(t, "dev:alice@example.com", res.User.ID)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, models.RoleOwner, res.Role)
	assert.Len(t, env.Contexts.Tokens(), 1)

	personal, err := env.DB.Workspaces().GetPersonal(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, personal.ID, res.WorkspaceID)
}

func TestServeDevLogin_RejectsBadEmail(t *testing.T) {
	h, env := newHandler(t)

	rec, _ := devLogin(t, h, map[string]string{"email": "not an email"})

	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, `"invalid_argument"`)
	assert.Empty(t, env.Contexts.Tokens())
}

func TestServeDevLogin_AcceptsInviteLink(t *testing.T) {
	h, env := newHandler(t)
	ctx := context.Background()
	alice := env.User(t, "alice", "Alice")
	ws, err := env.Workspaces.Create(ctx, alice, "Road Trip", "")
	require.NoError(t, err)
	inv, err := env.Invitations.Send(ctx, invitations.SendInput{
		InviterID:   alice.ID,
		Target:      "bob@example.com",
		WorkspaceID: &ws.ID,
		Role:        "member",
	})
	require.NoError(t, err)

	rec, res := devLogin(t, h, map[string]string{"id": "bob", "email": "bob@example.com", "invite": inv.Token})

	rec.AssertStatus(t, http.StatusOK)
	require.NotNil(t, res.Joined)
	assert.Equal(t, ws.ID, *res.Joined)
	assert.Equal(t, ws.ID, res.WorkspaceID)
	assert.Equal(t, models.RoleMember, res.Role)
	assert.Empty(t, res.InviteError)

	role, err := env.Members.GetRole(ctx, "bob", ws.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, role)
}

func TestServeDevLogin_BadInviteStillSignsIn(t *testing.T) {
	h, _ := newHandler(t)

	rec, res := devLogin(t, h, map[string]string{"email": "carol@example.com", "invite": "no-such-token"})

	rec.AssertStatus(t, http.StatusOK)
	assert.Nil(t, res.Joined)
	assert.Equal(t, "not_found", res.InviteError)
}

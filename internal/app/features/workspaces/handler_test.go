package workspaces_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/features/workspaces"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type listBody struct {
	Workspaces []struct {
		Workspace  models.Workspace `json:"workspace"`
		Role       models.Role      `json:"role"`
		IsFavorite bool             `json:"is_favorite"`
	} `json:"workspaces"`
	Current shared.ContextView `json:"current"`
}

type created struct {
	Workspace models.Workspace    `json:"workspace"`
	Role      models.Role         `json:"role"`
	Context   *shared.ContextView `json:"context"`
}

func newRouter(t *testing.T) (chi.Router, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t)
	sessions := &shared.Sessions{Contexts: env.Contexts, Users: env.DB.Users(), Log: env.Log}
	h := workspaces.NewHandler(env.Workspaces, env.Members, sessions, env.Log)
	return workspaces.Routes(h), env
}

func do(t *testing.T, r chi.Router, method, path string, body any, u testutil.TestUser) *testutil.ResponseRecorder {
	t.Helper()
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewAuthenticatedRequest(t, method, path, body, u))
	return rec
}

func as(u models.User) testutil.TestUser {
	return testutil.TestUser{ID: u.ID, Name: u.DisplayName, Email: u.Email, Token: "tok-" + u.ID}
}

func TestCreateAndList(t *testing.T) {
	r, env := newRouter(t)
	alice := as(env.User(t, "alice", "Alice"))

	rec := do(t, r, "POST", "/", map[string]any{"name": "Road Trip", "switch": true}, alice)
	rec.AssertStatus(t, http.StatusCreated)
	var c created
	rec.DecodeJSON(t, &c)
	assert.Equal(t, "Road Trip", c.Workspace.Name)
	assert.Equal(t, models.RoleOwner, c.Role)
	require.NotNil(t, c.Context)
	assert.False(t, c.Context.Personal)
	assert.Equal(t, c.Workspace.ID, c.Context.WorkspaceID)

	rec = do(t, r, "GET", "/", nil, alice)
	rec.AssertStatus(t, http.StatusOK)
	var l listBody
	rec.DecodeJSON(t, &l)
	names := make([]string, 0, len(l.Workspaces))
	for _, e := range l.Workspaces {
		names = append(names, e.Workspace.Name)
		assert.Equal(t, models.RoleOwner, e.Role)
	}
	assert.Len(t, names, 2)
	assert.Contains(t, names, "Road Trip")
	assert.Equal(t, c.Workspace.ID, l.Current.WorkspaceID)
}

func TestCreate_RequiresName(t *testing.T) {
	r, env := newRouter(t)
	alice := as(env.User(t, "alice", "Alice"))

	rec := do(t, r, "POST", "/", map[string]any{"name": "   "}, alice)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestUpdate_OwnerOrAdminOnly(t *testing.T) {
	r, env := newRouter(t)
	ctx := context.Background()
	alice := env.User(t, "alice", "Alice")
	bob := env.User(t, "bob", "Bob")
	ws, err := env.Workspaces.Create(ctx, alice, "Road Trip", "")
	require.NoError(t, err)
	env.Join(t, ws.ID, alice, bob, models.RoleMember)

	rec := do(t, r, "PATCH", "/"+ws.ID.Hex(), map[string]any{"name": "Bob's Trip"}, as(bob))
	rec.AssertStatus(t, http.StatusForbidden)

	rec = do(t, r, "PATCH", "/"+ws.ID.Hex(), map[string]any{"name": "Summer Trip"}, as(alice))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"Summer Trip"`)
}

func TestSwitch(t *testing.T) {
	r, env := newRouter(t)
	ctx := context.Background()
	alice := env.User(t, "alice", "Alice")
	carol := env.User(t, "carol", "Carol")
	ws, err := env.Workspaces.Create(ctx, alice, "Road Trip", "")
	require.NoError(t, err)

	rec := do(t, r, "POST", "/"+ws.ID.Hex()+"/switch", nil, as(alice))
	rec.AssertStatus(t, http.StatusOK)
	var cv shared.ContextView
	rec.DecodeJSON(t, &cv)
	assert.Equal(t, ws.ID, cv.WorkspaceID)
	assert.Equal(t, models.RoleOwner, cv.Role)

	rec = do(t, r, "POST", "/personal/switch", nil, as(alice))
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &cv)
	assert.True(t, cv.Personal)

	// Not a member: refused, and the session stays where it was.
	rec = do(t, r, "POST", "/"+ws.ID.Hex()+"/switch", nil, as(carol))
	rec.AssertStatus(t, http.StatusForbidden)
	sess, ok := env.Contexts.Get(as(carol).Token)
	require.True(t, ok)
	target, _, _ := sess.Current()
	assert.True(t, target.IsPersonal())

	rec = do(t, r, "POST", "/"+primitive.NewObjectID().Hex()+"/switch", nil, as(alice))
	rec.AssertStatus(t, http.StatusNotFound)

	rec = do(t, r, "POST", "/not-an-id/switch", nil, as(alice))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestLeave_ReturnsToPersonal(t *testing.T) {
	r, env := newRouter(t)
	ctx := context.Background()
	alice := env.User(t, "alice", "Alice")
	bob := env.User(t, "bob", "Bob")
	ws, err := env.Workspaces.Create(ctx, alice, "Road Trip", "")
	require.NoError(t, err)
	env.Join(t, ws.ID, alice, bob, models.RoleMember)

	do(t, r, "POST", "/"+ws.ID.Hex()+"/switch", nil, as(bob)).AssertStatus(t, http.StatusOK)

	rec := do(t, r, "POST", "/"+ws.ID.Hex()+"/leave", nil, as(bob))
	rec.AssertStatus(t, http.StatusOK)
	var cv shared.ContextView
	rec.DecodeJSON(t, &cv)
	assert.True(t, cv.Personal)

	role, err := env.Members.GetRole(ctx, bob.ID, ws.ID)
	require.NoError(t, err)
	assert.Empty(t, role)

	// The owner cannot leave.
	rec = do(t, r, "POST", "/"+ws.ID.Hex()+"/leave", nil, as(alice))
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestDelete_MovesMembersToPersonal(t *testing.T) {
	r, env := newRouter(t)
	ctx := context.Background()
	alice := env.User(t, "alice", "Alice")
	bob := env.User(t, "bob", "Bob")
	ws, err := env.Workspaces.Create(ctx, alice, "Road Trip", "")
	require.NoError(t, err)
	env.Join(t, ws.ID, alice, bob, models.RoleMember)

	do(t, r, "POST", "/"+ws.ID.Hex()+"/switch", nil, as(bob)).AssertStatus(t, http.StatusOK)

	do(t, r, "DELETE", "/"+ws.ID.Hex(), nil, as(bob)).AssertStatus(t, http.StatusForbidden)
	do(t, r, "DELETE", "/"+ws.ID.Hex(), nil, as(alice)).AssertStatus(t, http.StatusNoContent)

	sess, ok := env.Contexts.Get(as(bob).Token)
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		target, _, _ := sess.Current()
		return target.IsPersonal()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDelete_PersonalIsRefused(t *testing.T) {
	r, env := newRouter(t)
	alice := env.User(t, "alice", "Alice")
	personal, err := env.Workspaces.EnsurePersonal(context.Background(), alice)
	require.NoError(t, err)

	rec := do(t, r, "DELETE", "/"+personal.ID.Hex(), nil, as(alice))
	rec.AssertStatus(t, http.StatusConflict)
}

func TestFavorite(t *testing.T) {
	r, env := newRouter(t)
	ctx := context.Background()
	alice := env.User(t, "alice", "Alice")
	ws, err := env.Workspaces.Create(ctx, alice, "Road Trip", "")
	require.NoError(t, err)

	do(t, r, "POST", "/"+ws.ID.Hex()+"/favorite", nil, as(alice)).AssertStatus(t, http.StatusOK)

	rec := do(t, r, "GET", "/", nil, as(alice))
	var l listBody
	rec.DecodeJSON(t, &l)
	for _, e := range l.Workspaces {
		assert.Equal(t, e.Workspace.ID == ws.ID, e.IsFavorite, e.Workspace.Name)
	}

	do(t, r, "POST", "/"+ws.ID.Hex()+"/favorite", map[string]bool{"favorite": false}, as(alice)).AssertStatus(t, http.StatusOK)
	rec = do(t, r, "GET", "/", nil, as(alice))
	rec.DecodeJSON(t, &l)
	for _, e := range l.Workspaces {
		assert.False(t, e.IsFavorite)
	}
}

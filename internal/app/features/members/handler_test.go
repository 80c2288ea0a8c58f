package members_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/features/members"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	env    *testutil.Env
	router chi.Router
	ws     models.Workspace

	alice, bob, carol models.User
	bobM, carolM      models.Membership
}

func setup(t *testing.T) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	h := members.NewHandler(env.Members, env.Log)
	r := chi.NewRouter()
	r.Mount("/api/members", members.Routes(h))
	r.Route("/api/workspaces", members.WorkspaceRoutes(h))

	f := &fixture{env: env, router: r}
	f.alice = env.User(t, "alice", "Alice")
	f.bob = env.User(t, "bob", "Bob")
	f.carol = env.User(t, "carol", "Carol")
	ws, err := env.Workspaces.Create(context.Background(), f.alice, "Road Trip", "")
	require.NoError(t, err)
	f.ws = ws
	f.bobM = env.Join(t, ws.ID, f.alice, f.bob, models.RoleMember)
	f.carolM = env.Join(t, ws.ID, f.alice, f.carol, models.RoleMember)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, u models.User) *testutil.ResponseRecorder {
	t.Helper()
	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(t, method, path, body, testutil.SignedIn(u.ID, u.DisplayName)))
	return rec
}

func listed(t *testing.T, rec *testutil.ResponseRecorder) []models.Membership {
	t.Helper()
	var body struct {
		Members []models.Membership `json:"members"`
	}
	rec.DecodeJSON(t, &body)
	return body.Members
}

func TestServeList(t *testing.T) {
	f := setup(t)

	rec := f.do(t, "GET", "/api/workspaces/"+f.ws.ID.Hex()+"/members", nil, f.bob)
	rec.AssertStatus(t, http.StatusOK)
	ms := listed(t, rec)
	require.Len(t, ms, 3)
	assert.Equal(t, f.alice.ID, ms[0].UserID)
	assert.Equal(t, models.RoleOwner, ms[0].Role)

	outsider := f.env.User(t, "dave", "Dave")
	rec = f.do(t, "GET", "/api/workspaces/"+f.ws.ID.Hex()+"/members", nil, outsider)
	rec.AssertStatus(t, http.StatusForbidden)

	rec = f.do(t, "GET", "/api/workspaces/"+primitive.NewObjectID().Hex()+"/members", nil, f.alice)
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestSetRole(t *testing.T) {
	f := setup(t)

	rec := f.do(t, "PATCH", "/api/members/"+f.carolM.ID.Hex(), map[string]string{"role": "admin"}, f.bob)
	rec.AssertStatus(t, http.StatusForbidden)

	rec = f.do(t, "PATCH", "/api/members/"+f.bobM.ID.Hex(), map[string]string{"role": "admin"}, f.alice)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"role":"admin"`)

	role, err := f.env.Members.GetRole(context.Background(), f.bob.ID, f.ws.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)

	rec = f.do(t, "PATCH", "/api/members/"+f.bobM.ID.Hex(), map[string]string{"role": "owner"}, f.alice)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestSetRole_OwnerIsFixed(t *testing.T) {
	f := setup(t)
	owner, err := f.env.DB.Memberships().Get(context.Background(), f.ws.ID, f.alice.ID)
	require.NoError(t, err)

	_, err = f.env.Members.SetRole(context.Background(), f.alice.ID, f.bobM.ID, models.RoleAdmin)
	require.NoError(t, err)

	rec := f.do(t, "PATCH", "/api/members/"+owner.ID.Hex(), map[string]string{"role": "member"}, f.bob)
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestRemove(t *testing.T) {
	f := setup(t)

	f.do(t, "DELETE", "/api/members/"+f.carolM.ID.Hex(), nil, f.bob).AssertStatus(t, http.StatusForbidden)
	f.do(t, "DELETE", "/api/members/"+f.carolM.ID.Hex(), nil, f.alice).AssertStatus(t, http.StatusNoContent)

	rec := f.do(t, "GET", "/api/workspaces/"+f.ws.ID.Hex()+"/members", nil, f.alice)
	assert.Len(t, listed(t, rec), 2)

	f.do(t, "DELETE", "/api/members/"+f.carolM.ID.Hex(), nil, f.alice).AssertStatus(t, http.StatusNotFound)
	f.do(t, "DELETE", "/api/members/zzz", nil, f.alice).AssertStatus(t, http.StatusBadRequest)
}

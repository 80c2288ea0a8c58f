package logout_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/features/logout"
	"github.com/dalemusser/taskhub/internal/app/services/activectx"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.uber.org/zap"
)

func TestServeLogout_NoSession(t *testing.T) {
	handler := logout.NewHandler(testutil.SessionManager(t), nil, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.ServeLogout(rec, httptest.NewRequest("POST", "/logout", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}

func TestServeLogout_EndsSessionAndForgetsContext(t *testing.T) {
	env := testutil.NewEnv(t)
	sm := testutil.SessionManager(t)
	handler := logout.NewHandler(sm, env.Contexts, nil, zap.NewNop())
	ctx := context.Background()

	alice := env.User(t, "alice", "Alice")
	ws, err := env.Workspaces.Create(ctx, alice, "Team", "")
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}

	// Sign in to get a real cookie and token.
	signIn := httptest.NewRecorder()
	su, err := sm.SignIn(signIn, httptest.NewRequest("POST", "/login/dev", nil),
		auth.SessionUser{ID: alice.ID, Name: alice.DisplayName, Email: alice.Email})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	sess, err := env.Contexts.Open(ctx, activectx.OpenInput{Token: su.Token, User: alice})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := sess.SwitchTo(ctx, activectx.Shared(ws.ID)); err != nil {
		t.Fatalf("SwitchTo failed: %v", err)
	}

	req := httptest.NewRequest("POST", "/logout", nil)
	for _, c := range signIn.Result().Cookies() {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler.ServeLogout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if c := testutil.Cookie(rec, testutil.SessionCookie); c == nil || c.MaxAge != -1 {
		t.Errorf("expected session cookie to be deleted, got %+v", c)
	}
	if _, ok := env.Contexts.Get(su.Token); ok {
		t.Error("session still open after logout")
	}
	if _, ok, _ := env.DB.Prefs().Get(ctx, alice.ID, models.PrefCurrentWorkspace); ok {
		t.Error("saved context should be cleared on logout")
	}
}

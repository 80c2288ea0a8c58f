package settings_test

import (
	"net/http"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/features/settings"
	"github.com/dalemusser/taskhub/internal/app/store/memstore"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.uber.org/zap"
)

type themeBody struct {
	Theme string `json:"theme"`
}

func TestTheme_DefaultThenSet(t *testing.T) {
	h := settings.NewHandler(memstore.New().Prefs(), zap.NewNop())
	alice := testutil.SignedIn("alice", "Alice")

	rec := testutil.NewRecorder()
	h.ServeTheme(rec, testutil.NewAuthenticatedRequest(t, "GET", "/api/prefs/theme", nil, alice))
	rec.AssertStatus(t, http.StatusOK)
	var got themeBody
	rec.DecodeJSON(t, &got)
	if got.Theme != settings.DefaultTheme {
		t.Errorf("theme: got %q, want %q", got.Theme, settings.DefaultTheme)
	}

	rec = testutil.NewRecorder()
	h.HandleSetTheme(rec, testutil.NewAuthenticatedRequest(t, "PUT", "/api/prefs/theme", themeBody{Theme: " Dark "}, alice))
	rec.AssertStatus(t, http.StatusOK)

	rec = testutil.NewRecorder()
	h.ServeTheme(rec, testutil.NewAuthenticatedRequest(t, "GET", "/api/prefs/theme", nil, alice))
	rec.DecodeJSON(t, &got)
	if got.Theme != "dark" {
		t.Errorf("theme: got %q, want %q", got.Theme, "dark")
	}
}

func TestSetTheme_RejectsUnknown(t *testing.T) {
	h := settings.NewHandler(memstore.New().Prefs(), zap.NewNop())

	rec := testutil.NewRecorder()
	h.HandleSetTheme(rec, testutil.NewAuthenticatedRequest(t, "PUT", "/api/prefs/theme",
		themeBody{Theme: "neon"}, testutil.SignedIn("alice", "Alice")))

	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestTheme_PerUser(t *testing.T) {
	h := settings.NewHandler(memstore.New().Prefs(), zap.NewNop())

	rec := testutil.NewRecorder()
	h.HandleSetTheme(rec, testutil.NewAuthenticatedRequest(t, "PUT", "/api/prefs/theme",
		themeBody{Theme: "light"}, testutil.SignedIn("alice", "Alice")))
	rec.AssertStatus(t, http.StatusOK)

	rec = testutil.NewRecorder()
	h.ServeTheme(rec, testutil.NewAuthenticatedRequest(t, "GET", "/api/prefs/theme", nil, testutil.SignedIn("bob", "Bob")))
	var got themeBody
	rec.DecodeJSON(t, &got)
	if got.Theme != settings.DefaultTheme {
		t.Errorf("bob's theme: got %q, want %q", got.Theme, settings.DefaultTheme)
	}
}

package authgoogle_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/features/authgoogle"
	"github.com/dalemusser/taskhub/internal/app/features/login"
	"github.com/dalemusser/taskhub/internal/app/store/oauthstate"
	"github.com/dalemusser/taskhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const cookieKey = "test-state-key-must-be-32-chars-long"

// fakeGoogle serves the token and userinfo endpoints.
func fakeGoogle(t *testing.T, verified bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":             "g-123",
			"email":          "Dana@Example.com",
			"verified_email": verified,
			"name":           "Dana",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type memStates struct {
	mu sync.Mutex
	m  map[string]oauthstate.State
}

func (s *memStates) Save(_ context.Context, st oauthstate.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[st.State] = st
	return nil
}

func (s *memStates) Consume(_ context.Context, state string) (oauthstate.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[state]
	delete(s.m, state)
	return st, ok, nil
}

func newHandler(t *testing.T, google *httptest.Server, clientID string) (*authgoogle.Handler, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t)
	flow := &login.Flow{
		Users:    env.DB.Users(),
		Sessions: testutil.SessionManager(t),
		Contexts: env.Contexts,
		Invites:  env.Invitations,
		Log:      env.Log,
	}
	h := authgoogle.NewHandler(flow, &memStates{m: map[string]oauthstate.State{}}, nil,
		cookieKey, false, clientID, "secret", "http://localhost:8080", env.Log)
	if google != nil {
		h.Endpoint = oauth2.Endpoint{AuthURL: google.URL + "/auth", TokenURL: google.URL + "/token"}
		h.UserInfoURL = google.URL + "/userinfo"
	}
	return h, env
}

// start runs ServeLogin and returns the issued state and cookie.
func start(t *testing.T, h *authgoogle.Handler, target string) (string, *http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeLogin(rec, httptest.NewRequest("GET", target, nil))
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	c := testutil.Cookie(rec, "taskhub_oauth")
	require.NotNil(t, c)
	return state, c
}

func callback(h *authgoogle.Handler, state string, c *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/login/google/callback?code=abc&state="+url.QueryEscape(state), nil)
	if c != nil {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeCallback(rec, req)
	return rec
}

func TestIsConfigured(t *testing.T) {
	h, _ := newHandler(t, nil, "client-id")
	assert.True(t, h.IsConfigured())

	h, _ = newHandler(t, nil, "")
	assert.False(t, h.IsConfigured())
}

func TestServeLogin_NotConfigured(t *testing.T) {
	h, _ := newHandler(t, nil, "")

	rec := httptest.NewRecorder()
	h.ServeLogin(rec, httptest.NewRequest("GET", "/login/google", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "login_error=google_not_configured")
}

func TestCallback_SignsIn(t *testing.T) {
	google := fakeGoogle(t, true)
	h, env := newHandler(t, google, "client-id")

	state, c := start(t, h, "/login/google")
	rec := callback(h, state, c)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.NotContains(t, rec.Header().Get("Location"), "login_error")
	require.NotNil(t, testutil.Cookie(rec, testutil.SessionCookie), "session cookie")

	u, err := env.DB.Users().GetByID(context.Background(), "g-123")
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", u.Email)
	assert.Equal(t, "google", u.Provider)
	assert.Len(t, env.Contexts.Tokens(), 1)
}

func TestCallback_StateIsSingleUse(t *testing.T) {
	google := fakeGoogle(t, true)
	h, _ := newHandler(t, google, "client-id")

	state, c := start(t, h, "/login/google")
	first := callback(h, state, c)
	require.NotContains(t, first.Header().Get("Location"), "login_error")

	replay := callback(h, state, c)
	assert.Contains(t, replay.Header().Get("Location"), "login_error=invalid_state")
}

func TestCallback_RejectsForeignState(t *testing.T) {
	google := fakeGoogle(t, true)
	h, _ := newHandler(t, google, "client-id")

	_, c := start(t, h, "/login/google")
	rec := callback(h, "someone-elses-state", c)
	assert.Contains(t, rec.Header().Get("Location"), "login_error=invalid_state")

	state, _ := start(t, h, "/login/google")
	rec = callback(h, state, nil)
	assert.Contains(t, rec.Header().Get("Location"), "login_error=invalid_state")
}

func TestCallback_UnverifiedEmail(t *testing.T) {
	google := fakeGoogle(t, false)
	h, env := newHandler(t, google, "client-id")

	state, c := start(t, h, "/login/google")
	rec := callback(h, state, c)

	assert.Contains(t, rec.Header().Get("Location"), "login_error=unverified_email")
	assert.Empty(t, env.Contexts.Tokens())
}

func TestCallback_ProviderDenied(t *testing.T) {
	h, _ := newHandler(t, nil, "client-id")

	rec := httptest.NewRecorder()
	h.ServeCallback(rec, httptest.NewRequest("GET", "/login/google/callback?error=access_denied", nil))

	assert.Contains(t, rec.Header().Get("Location"), "login_error=google_denied")
}

func TestCallback_BadInviteIsReported(t *testing.T) {
	google := fakeGoogle(t, true)
	h, env := newHandler(t, google, "client-id")

	state, c := start(t, h, "/login/google?invite=missing-token")
	rec := callback(h, state, c)

	loc := rec.Header().Get("Location")
	assert.True(t, strings.Contains(loc, "invite_error=not_found"), loc)
	assert.Len(t, env.Contexts.Tokens(), 1)
}

// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dalemusser/taskhub/internal/app/features/login"
	"github.com/dalemusser/taskhub/internal/app/store/oauthstate"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	stateCookie = "taskhub_oauth"
	stateTTL    = 10 * time.Minute

	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// StateStore keeps issued OAuth states server-side for one-time use. The
// signed cookie alone binds the state to the browser; the store adds
// replay protection where a shared database is available.
type StateStore interface {
	Save(ctx context.Context, st oauthstate.State) error
	Consume(ctx context.Context, state string) (oauthstate.State, bool, error)
}

// Handler handles Google OAuth authentication.
type Handler struct {
	Flow       *login.Flow
	StateStore StateStore
	AuditLog   *auditlog.Logger
	Log        *zap.Logger

	cookies *securecookie.SecureCookie
	secure  bool

	// OAuth configuration
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "https://taskhub.example.com/login/google/callback"
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
}

// NewHandler creates a new Google OAuth handler. stateStore may be nil.
// The state cookie is signed with cookieKey.
func NewHandler(
	flow *login.Flow,
	stateStore StateStore,
	audit *auditlog.Logger,
	cookieKey string,
	secure bool,
	clientID, clientSecret, baseURL string,
	logger *zap.Logger,
) *Handler {
	sc := securecookie.New([]byte(cookieKey), nil)
	sc.MaxAge(int(stateTTL.Seconds()))
	return &Handler{
		Flow:         flow,
		StateStore:   stateStore,
		AuditLog:     audit,
		Log:          logger,
		cookies:      sc,
		secure:       secure,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/login/google/callback",
		Endpoint:     google.Endpoint,
		UserInfoURL:  defaultUserInfoURL,
	}
}

// oauth2Config returns the Google OAuth2 configuration.
func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: h.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

// pendingLogin travels in the signed state cookie.
type pendingLogin struct {
	State     string
	ReturnURL string
	Invite    string
	ExpiresAt time.Time
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login/google                                                            |
| Starts the flow. ?invite= carries an invite link token through the round     |
| trip; ?return= is where the browser lands afterwards.                        |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		redirectWithError(w, r, "google_not_configured")
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		redirectWithError(w, r, "internal")
		return
	}

	p := pendingLogin{
		State:     state,
		ReturnURL: query.Get(r, "return"),
		Invite:    query.Get(r, "invite"),
		ExpiresAt: time.Now().UTC().Add(stateTTL),
	}

	if h.StateStore != nil {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()
		if err := h.StateStore.Save(ctx, oauthstate.State{
			State:       p.State,
			ReturnURL:   p.ReturnURL,
			InviteToken: p.Invite,
			ExpiresAt:   p.ExpiresAt,
		}); err != nil {
			h.Log.Error("failed to save OAuth state", zap.Error(err))
			redirectWithError(w, r, "internal")
			return
		}
	}

	encoded, err := h.cookies.Encode(stateCookie, p)
	if err != nil {
		h.Log.Error("failed to sign OAuth state", zap.Error(err))
		redirectWithError(w, r, "internal")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    encoded,
		Path:     "/login/google",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	dest := h.oauth2Config().AuthCodeURL(state, oauth2.AccessTypeOnline)
	h.Log.Debug("initiating Google OAuth flow",
		zap.String("return_url", p.ReturnURL),
		zap.Bool("invite", p.Invite != ""))
	http.Redirect(w, r, dest, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login/google/callback                                                   |
| Checks the state, exchanges the code, fetches the profile and hands the      |
| identity to the sign-in flow.                                                |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := query.Get(r, "error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", query.Get(r, "error_description")))
		h.AuditLog.LoginFailed(ctx, r, "google", "denied")
		redirectWithError(w, r, "google_denied")
		return
	}

	p, ok := h.checkState(w, r)
	if !ok {
		h.AuditLog.LoginFailed(ctx, r, "google", "invalid_state")
		redirectWithError(w, r, "invalid_state")
		return
	}

	code := query.Get(r, "code")
	if code == "" {
		h.Log.Warn("missing OAuth code parameter")
		redirectWithError(w, r, "invalid_code")
		return
	}

	exCtx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()
	token, err := h.oauth2Config().Exchange(exCtx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		h.AuditLog.LoginFailed(ctx, r, "google", "token_exchange")
		redirectWithError(w, r, "token_exchange")
		return
	}

	gu, err := h.fetchUserInfo(exCtx, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		redirectWithError(w, r, "user_info")
		return
	}
	if gu.ID == "" || gu.Email == "" || !gu.EmailVerified {
		h.Log.Info("Google account unusable", zap.String("google_id", gu.ID), zap.Bool("verified", gu.EmailVerified))
		h.AuditLog.LoginFailed(ctx, r, "google", "unverified_email")
		redirectWithError(w, r, "unverified_email")
		return
	}

	res, err := h.Flow.Complete(w, r, models.Identity{
		ID:          gu.ID,
		Email:       gu.Email,
		DisplayName: gu.Name,
		PhotoURL:    gu.Picture,
		Provider:    "google",
	}, p.Invite)
	if err != nil {
		h.Log.Error("sign-in failed after Google OAuth", zap.Error(err), zap.String("google_id", gu.ID))
		redirectWithError(w, r, "internal")
		return
	}

	dest := urlutil.SafeReturn(p.ReturnURL, "", "/")
	if res.InviteError != "" {
		dest = withParam(dest, "invite_error", res.InviteError)
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// checkState verifies the state parameter against the signed cookie and,
// when configured, consumes it from the store. The cookie is cleared
// either way.
func (h *Handler) checkState(w http.ResponseWriter, r *http.Request) (pendingLogin, bool) {
	state := query.Get(r, "state")
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/login/google", MaxAge: -1})
	if state == "" {
		h.Log.Warn("missing OAuth state parameter")
		return pendingLogin{}, false
	}

	c, err := r.Cookie(stateCookie)
	if err != nil {
		h.Log.Warn("missing OAuth state cookie")
		return pendingLogin{}, false
	}
	var p pendingLogin
	if err := h.cookies.Decode(stateCookie, c.Value, &p); err != nil {
		h.Log.Warn("OAuth state cookie rejected", zap.Error(err))
		return pendingLogin{}, false
	}
	if p.State != state || time.Now().UTC().After(p.ExpiresAt) {
		h.Log.Warn("OAuth state mismatch or expired")
		return pendingLogin{}, false
	}

	if h.StateStore != nil {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()
		if _, ok, err := h.StateStore.Consume(ctx, state); err != nil || !ok {
			h.Log.Warn("OAuth state already used or unknown", zap.Error(err))
			return pendingLogin{}, false
		}
	}
	return p, true
}

// googleUserInfo represents user info returned from Google.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// fetchUserInfo retrieves user information from the userinfo endpoint.
func (h *Handler) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get(h.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return &info, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

func redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/?login_error="+url.QueryEscape(code), http.StatusSeeOther)
}

func withParam(dest, key, value string) string {
	u, err := url.Parse(dest)
	if err != nil {
		return dest
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

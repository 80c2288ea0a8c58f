package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session keys                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	isAuthKey  = "is_authenticated"
	userIDKey  = "user_id"
	userName   = "user_name"
	userEmail  = "user_email"
	userPhoto  = "user_photo"
	tokenKey   = "session_token"
	loggedInAt = "logged_in_at"
)

// ErrNoSession is returned by SignOut when the request carries no signed-in
// session.
var ErrNoSession = errors.New("no signed-in session")

// SessionUser is what we cache in the cookie and inject into r.Context().
// Token identifies this browser session; the active workspace context is
// keyed by it.
type SessionUser struct {
	ID       string
	Name     string
	Email    string
	PhotoURL string
	Token    string
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user and a "found?" flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// WithTestUser injects u into the request context the way LoadSessionUser
// does. Handler tests use it to skip the cookie round trip.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

/*─────────────────────────────────────────────────────────────────────────────*
| SessionManager                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionManager owns the cookie store. One is built at startup and passed
// to every handler that needs it.
type SessionManager struct {
	store  *sessions.CookieStore
	name   string
	maxAge time.Duration
	log    *zap.Logger
}

// NewSessionManager builds the cookie store.
//
// In production (secure=true) cookies are Secure + SameSite=None so the
// browser client can live on another origin. Over plain http in dev use
// secure=false so cookies are accepted.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, errors.New("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "taskhub-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	}

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("max_age", maxAge))

	return &SessionManager{store: store, name: name, maxAge: maxAge, log: logger}, nil
}

// SignIn writes u into a fresh session cookie and returns it with a new
// session token.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, u SessionUser) (SessionUser, error) {
	sess, _ := sm.store.Get(r, sm.name)
	u.Token = uuid.NewString()
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID
	sess.Values[userName] = u.Name
	sess.Values[userEmail] = u.Email
	sess.Values[userPhoto] = u.PhotoURL
	sess.Values[tokenKey] = u.Token
	sess.Values[loggedInAt] = time.Now().UTC().Unix()
	if err := sess.Save(r, w); err != nil {
		return SessionUser{}, err
	}
	return u, nil
}

// SignOut expires the cookie and returns the user it belonged to.
func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) (SessionUser, error) {
	sess, _ := sm.store.Get(r, sm.name)
	u, ok := fromSession(sess)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		return SessionUser{}, err
	}
	if !ok {
		return SessionUser{}, ErrNoSession
	}
	return *u, nil
}

// LoadSessionUser injects the user into context if they are signed in.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.store.Get(r, sm.name)
		if err != nil {
			sm.log.Debug("ignoring unreadable session cookie", zap.Error(err))
		}
		if u, ok := fromSession(sess); ok {
			r = withUser(r, u)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn ensures there is a user in context (set by LoadSessionUser)
// and answers 401 with a JSON error body otherwise.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"unauthenticated","message":"sign in required"}}`))
	})
}

// helpers

func fromSession(sess *sessions.Session) (*SessionUser, bool) {
	if sess == nil {
		return nil, false
	}
	if isAuth, _ := sess.Values[isAuthKey].(bool); !isAuth {
		return nil, false
	}
	u := &SessionUser{
		ID:       getString(sess, userIDKey),
		Name:     getString(sess, userName),
		Email:    getString(sess, userEmail),
		PhotoURL: getString(sess, userPhoto),
		Token:    getString(sess, tokenKey),
	}
	if u.ID == "" || u.Token == "" {
		return nil, false
	}
	return u, true
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

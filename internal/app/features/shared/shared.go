// Package shared holds the request plumbing every API feature uses: JSON
// bodies, path ids, and the caller's active-context session.
package shared

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/services/activectx"
	userstore "github.com/dalemusser/taskhub/internal/app/store/users"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/limits"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// JSON writes v as the response body with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Decode reads the JSON request body into v. An empty body leaves v alone.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	const op = "decode body"
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limits.MaxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Wrap(apperr.InvalidArgument, op, err)
	}
	return nil
}

// ObjectID parses the chi path parameter name.
func ObjectID(r *http.Request, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return primitive.NilObjectID, apperr.New(apperr.InvalidArgument, "path", "malformed "+name)
	}
	return id, nil
}

// OptionalObjectID parses a hex id from a body field; "" yields nil.
func OptionalObjectID(field, hex string) (*primitive.ObjectID, error) {
	if hex == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, apperr.New(apperr.InvalidArgument, "body", "malformed "+field)
	}
	return &id, nil
}

// Caller returns the signed-in user. Routes behind RequireSignedIn always
// have one.
func Caller(r *http.Request) (*auth.SessionUser, error) {
	u, ok := auth.CurrentUser(r)
	if !ok || u == nil {
		return nil, apperr.New(apperr.Forbidden, "caller", "sign in required")
	}
	return u, nil
}

// Ctx bounds a handler's store work.
func Ctx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), timeouts.Medium())
}

// Profiles loads user profiles.
type Profiles interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

// Sessions finds or opens the active-context session behind a request.
type Sessions struct {
	Contexts *activectx.Manager
	Users    Profiles
	Log      *zap.Logger
}

// For returns the caller's session, opening it when this process has not
// seen the session token yet (first request after sign-in or a restart).
func (s *Sessions) For(r *http.Request) (*activectx.Session, error) {
	const op = "sessions.For"
	u, err := Caller(r)
	if err != nil {
		return nil, err
	}
	if sess, ok := s.Contexts.Get(u.Token); ok {
		return sess, nil
	}

	ctx, cancel := Ctx(r)
	defer cancel()
	profile, err := s.Users.GetByID(ctx, u.ID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return nil, apperr.New(apperr.Forbidden, op, "profile no longer exists")
		}
		return nil, apperr.FromStore(op, err)
	}
	return s.Contexts.Open(ctx, activectx.OpenInput{
		Token:     u.Token,
		User:      profile,
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
	})
}

// ClientIP returns the request's remote host. chi's RealIP middleware has
// already applied any trusted forwarding headers.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ContextView is the wire form of a session's active context.
type ContextView struct {
	Personal    bool               `json:"personal"`
	WorkspaceID primitive.ObjectID `json:"workspace_id"`
	Role        models.Role        `json:"role"`
	Generation  uint64             `json:"generation"`
}

// Describe reports the session's current context.
func Describe(sess *activectx.Session) ContextView {
	target, wsID, role := sess.Current()
	return ContextView{
		Personal:    target.IsPersonal(),
		WorkspaceID: wsID,
		Role:        role,
		Generation:  sess.Generation(),
	}
}

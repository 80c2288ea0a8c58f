package testutil

import (
	"context"
	"net/http"
	"testing"

	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that call a handler directly.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// ProfileUpserter is the part of a profile store fixtures need.
type ProfileUpserter interface {
	Upsert(ctx context.Context, id models.Identity) (models.User, error)
}

// Identity returns a provider identity for a test person.
func Identity(id, name string) models.Identity {
	return models.Identity{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: name,
		Provider:    "dev",
	}
}

// CreateUser signs a test person in for the first time and returns their
// profile.
func CreateUser(t *testing.T, users ProfileUpserter, id, name string) models.User {
	t.Helper()
	u, err := users.Upsert(context.Background(), Identity(id, name))
	if err != nil {
		t.Fatalf("failed to create test user %s: %v", id, err)
	}
	return u
}

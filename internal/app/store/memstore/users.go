package memstore

import (
	"context"
	"errors"
	"time"

	userstore "github.com/dalemusser/taskhub/internal/app/store/users"
	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/domain/models"
)

type Users struct{ db *DB }

func (s *Users) Upsert(_ context.Context, id models.Identity) (models.User, error) {
	if id.ID == "" {
		return models.User{}, errors.New("identity has no id")
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	email := normalize.Email(id.Email)
	for _, u := range s.db.users {
		if u.ID != id.ID && u.EmailCI == email {
			return models.User{}, userstore.ErrDuplicateEmail
		}
	}
	now := time.Now().UTC()
	u, ok := s.db.users[id.ID]
	if !ok {
		u = models.User{ID: id.ID, CreatedAt: now}
	}
	u.Email = email
	u.EmailCI = email
	u.DisplayName = normalize.DisplayName(id.DisplayName, email)
	u.PhotoURL = id.PhotoURL
	u.Provider = id.Provider
	u.LastLoginAt = now
	u.UpdatedAt = now
	s.db.users[u.ID] = u
	return u, nil
}

func (s *Users) GetByID(_ context.Context, id string) (models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	u, ok := s.db.users[id]
	if !ok {
		return models.User{}, userstore.ErrNotFound
	}
	return u, nil
}

func (s *Users) GetByEmail(_ context.Context, email string) (models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	want := normalize.Email(email)
	for _, u := range s.db.users {
		if u.EmailCI == want {
			return u, nil
		}
	}
	return models.User{}, userstore.ErrNotFound
}

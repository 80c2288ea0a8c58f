package memstore

import (
	"context"
	"time"

	userworkspacestore "github.com/dalemusser/taskhub/internal/app/store/userworkspaces"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserWorkspaces struct{ db *DB }

func (s *UserWorkspaces) Put(_ context.Context, uw models.UserWorkspace) (models.UserWorkspace, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	now := time.Now().UTC()
	if uw.JoinedAt.IsZero() {
		uw.JoinedAt = now
	}
	if uw.LastAccessed.IsZero() {
		uw.LastAccessed = now
	}
	k := uwKey{uw.UserID, uw.WorkspaceID}
	if uw.ID.IsZero() {
		if cur, ok := s.db.assoc[k]; ok {
			uw.ID = cur.ID
		} else {
			uw.ID = primitive.NewObjectID()
		}
	}
	s.db.assoc[k] = uw
	return uw, nil
}

func (s *UserWorkspaces) Get(_ context.Context, userID string, wsID primitive.ObjectID) (models.UserWorkspace, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	uw, ok := s.db.assoc[uwKey{userID, wsID}]
	if !ok {
		return models.UserWorkspace{}, userworkspacestore.ErrNotFound
	}
	return uw, nil
}

func (s *UserWorkspaces) ListByUser(_ context.Context, userID string) ([]models.UserWorkspace, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	all := sortedValues(s.db.assoc, func(a, b models.UserWorkspace) bool {
		if !a.LastAccessed.Equal(b.LastAccessed) {
			return a.LastAccessed.After(b.LastAccessed)
		}
		return objectIDLess(a.ID, b.ID)
	})
	var out []models.UserWorkspace
	for _, uw := range all {
		if uw.UserID == userID {
			out = append(out, uw)
		}
	}
	return out, nil
}

func (s *UserWorkspaces) set(userID string, wsID primitive.ObjectID, fn func(*models.UserWorkspace)) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	k := uwKey{userID, wsID}
	uw, ok := s.db.assoc[k]
	if !ok {
		return userworkspacestore.ErrNotFound
	}
	fn(&uw)
	s.db.assoc[k] = uw
	return nil
}

func (s *UserWorkspaces) Touch(_ context.Context, userID string, wsID primitive.ObjectID, at time.Time) error {
	return s.set(userID, wsID, func(uw *models.UserWorkspace) { uw.LastAccessed = at })
}

func (s *UserWorkspaces) SetRole(_ context.Context, userID string, wsID primitive.ObjectID, role models.Role) error {
	return s.set(userID, wsID, func(uw *models.UserWorkspace) { uw.Role = role })
}

func (s *UserWorkspaces) SetFavorite(_ context.Context, userID string, wsID primitive.ObjectID, fav bool) error {
	return s.set(userID, wsID, func(uw *models.UserWorkspace) { uw.IsFavorite = fav })
}

func (s *UserWorkspaces) Delete(_ context.Context, userID string, wsID primitive.ObjectID) error {
	s.db.mu.Lock()
	delete(s.db.assoc, uwKey{userID, wsID})
	s.db.mu.Unlock()
	return nil
}

func (s *UserWorkspaces) DeleteByWorkspace(_ context.Context, wsID primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for k := range s.db.assoc {
		if k.ws == wsID {
			delete(s.db.assoc, k)
			n++
		}
	}
	return n, nil
}

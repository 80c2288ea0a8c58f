package memstore

import (
	"context"
	"time"

	membershipstore "github.com/dalemusser/taskhub/internal/app/store/memberships"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Memberships struct{ db *DB }

// conflicts reports whether m would break the per-pair or single-owner
// constraints, ignoring the record with m.ID.
func (s *Memberships) conflicts(m models.Membership) bool {
	for _, o := range s.db.members {
		if o.ID == m.ID || o.WorkspaceID != m.WorkspaceID {
			continue
		}
		if o.UserID == m.UserID {
			return true
		}
		if m.Role == models.RoleOwner && m.IsActive() && o.Role == models.RoleOwner && o.IsActive() {
			return true
		}
	}
	return false
}

func (s *Memberships) Insert(_ context.Context, m models.Membership) (models.Membership, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	now := time.Now().UTC()
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if _, ok := s.db.members[m.ID]; ok || s.conflicts(m) {
		return models.Membership{}, membershipstore.ErrDuplicate
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now
	}
	m.UpdatedAt = now
	s.db.members[m.ID] = m
	return m, nil
}

func (s *Memberships) Replace(_ context.Context, m models.Membership) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.members[m.ID]; !ok {
		return membershipstore.ErrNotFound
	}
	if s.conflicts(m) {
		return membershipstore.ErrDuplicate
	}
	s.db.members[m.ID] = m
	return nil
}

func (s *Memberships) Get(_ context.Context, wsID primitive.ObjectID, userID string) (models.Membership, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, m := range s.db.members {
		if m.WorkspaceID == wsID && m.UserID == userID {
			return m, nil
		}
	}
	return models.Membership{}, membershipstore.ErrNotFound
}

func (s *Memberships) GetByID(_ context.Context, id primitive.ObjectID) (models.Membership, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	m, ok := s.db.members[id]
	if !ok {
		return models.Membership{}, membershipstore.ErrNotFound
	}
	return m, nil
}

func (s *Memberships) ListActive(_ context.Context, wsID primitive.ObjectID) ([]models.Membership, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	all := sortedValues(s.db.members, func(a, b models.Membership) bool {
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return objectIDLess(a.ID, b.ID)
	})
	var out []models.Membership
	for _, m := range all {
		if m.WorkspaceID == wsID && m.IsActive() {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Memberships) mutateActiveNonOwner(id primitive.ObjectID, fn func(*models.Membership)) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.members[id]
	if !ok || !m.IsActive() || m.Role == models.RoleOwner {
		return membershipstore.ErrNotFound
	}
	fn(&m)
	s.db.members[id] = m
	return nil
}

func (s *Memberships) SetRole(_ context.Context, id primitive.ObjectID, role models.Role) error {
	return s.mutateActiveNonOwner(id, func(m *models.Membership) {
		m.Role = role
		m.UpdatedAt = time.Now().UTC()
	})
}

func (s *Memberships) MarkRemoved(_ context.Context, id primitive.ObjectID, by string, at time.Time) error {
	return s.mutateActiveNonOwner(id, func(m *models.Membership) {
		m.Status = models.MemberRemoved
		m.RemovedAt = &at
		m.RemovedBy = by
		m.UpdatedAt = at
	})
}

func (s *Memberships) Delete(_ context.Context, id primitive.ObjectID) error {
	s.db.mu.Lock()
	delete(s.db.members, id)
	s.db.mu.Unlock()
	return nil
}

func (s *Memberships) DeleteByWorkspace(_ context.Context, wsID primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for id, m := range s.db.members {
		if m.WorkspaceID == wsID {
			delete(s.db.members, id)
			n++
		}
	}
	return n, nil
}

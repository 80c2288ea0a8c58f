package memstore

import (
	"context"
	"time"

	invitationstore "github.com/dalemusser/taskhub/internal/app/store/invitations"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Invitations struct{ db *DB }

func (s *Invitations) dupPending(inv models.Invitation) bool {
	for _, o := range s.db.invites {
		if inv.Token != "" && o.Token == inv.Token {
			return true
		}
		if o.Status != models.InvitePending {
			continue
		}
		if o.InvitedBy == inv.InvitedBy && o.InvitedEmail == inv.InvitedEmail && o.TargetKey == inv.TargetKey {
			return true
		}
		if inv.WorkspaceID != nil && o.WorkspaceID != nil &&
			*o.WorkspaceID == *inv.WorkspaceID && o.InvitedEmail == inv.InvitedEmail {
			return true
		}
	}
	return false
}

func (s *Invitations) Create(_ context.Context, inv models.Invitation) (models.Invitation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if inv.ID.IsZero() {
		inv.ID = primitive.NewObjectID()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	inv.Status = models.InvitePending
	if s.dupPending(inv) {
		return models.Invitation{}, invitationstore.ErrDuplicatePending
	}
	s.db.invites[inv.ID] = inv
	return inv, nil
}

func (s *Invitations) GetByID(_ context.Context, id primitive.ObjectID) (models.Invitation, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	inv, ok := s.db.invites[id]
	if !ok {
		return models.Invitation{}, invitationstore.ErrNotFound
	}
	return inv, nil
}

func (s *Invitations) GetByToken(_ context.Context, token string) (models.Invitation, error) {
	return s.first(func(i models.Invitation) bool { return token != "" && i.Token == token })
}

func (s *Invitations) first(match func(models.Invitation) bool) (models.Invitation, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, i := range s.db.invites {
		if match(i) {
			return i, nil
		}
	}
	return models.Invitation{}, invitationstore.ErrNotFound
}

func (s *Invitations) list(match func(models.Invitation) bool, newestFirst bool) []models.Invitation {
	var all []models.Invitation
	if newestFirst {
		all = sortedValues(s.db.invites, func(a, b models.Invitation) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return objectIDLess(b.ID, a.ID)
		})
	} else {
		for _, i := range s.db.invites {
			all = append(all, i)
		}
	}
	var out []models.Invitation
	for _, i := range all {
		if match(i) {
			out = append(out, i)
		}
	}
	return out
}

func (s *Invitations) ListPendingForInvitee(_ context.Context, email string, now time.Time, ordered bool) ([]models.Invitation, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if ordered && s.db.orderedOff {
		return nil, invitationstore.ErrIndexUnavailable
	}
	return s.list(func(i models.Invitation) bool {
		return i.InvitedEmail == email && i.Status == models.InvitePending && i.ExpiresAt.After(now)
	}, ordered), nil
}

func (s *Invitations) ListByWorkspace(_ context.Context, wsID primitive.ObjectID) ([]models.Invitation, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.list(func(i models.Invitation) bool {
		return i.WorkspaceID != nil && *i.WorkspaceID == wsID
	}, true), nil
}

func (s *Invitations) ListByInviter(_ context.Context, inviterID string) ([]models.Invitation, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.list(func(i models.Invitation) bool { return i.InvitedBy == inviterID }, true), nil
}

func (s *Invitations) Resolve(_ context.Context, id primitive.ObjectID, status string, at time.Time, by string) (models.Invitation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.resolveLocked(id, status, at, by)
}

func (s *Invitations) resolveLocked(id primitive.ObjectID, status string, at time.Time, by string) (models.Invitation, error) {
	inv, ok := s.db.invites[id]
	if !ok {
		return models.Invitation{}, invitationstore.ErrNotFound
	}
	if inv.Status != models.InvitePending {
		return models.Invitation{}, invitationstore.ErrNotPending
	}
	inv.Status = status
	inv.ResolvedAt = &at
	if by != "" {
		inv.ResolvedBy = by
	}
	s.db.invites[id] = inv
	return inv, nil
}

func (s *Invitations) ExpireDue(_ context.Context, now time.Time) ([]models.Invitation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.Invitation
	for id, inv := range s.db.invites {
		if inv.Status != models.InvitePending || inv.ExpiresAt.After(now) {
			continue
		}
		got, err := s.resolveLocked(id, models.InviteExpired, now, "")
		if err != nil {
			continue
		}
		out = append(out, got)
	}
	return out, nil
}

func (s *Invitations) DeleteByWorkspace(_ context.Context, wsID primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for id, inv := range s.db.invites {
		if inv.WorkspaceID != nil && *inv.WorkspaceID == wsID {
			delete(s.db.invites, id)
			n++
		}
	}
	return n, nil
}

func (s *Invitations) DistinctWorkspaceIDs(_ context.Context) ([]primitive.ObjectID, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	seen := map[primitive.ObjectID]bool{}
	var out []primitive.ObjectID
	for _, inv := range s.db.invites {
		if inv.WorkspaceID != nil && !seen[*inv.WorkspaceID] {
			seen[*inv.WorkspaceID] = true
			out = append(out, *inv.WorkspaceID)
		}
	}
	return out, nil
}

package memstore

import (
	"context"
	"time"

	workspacestore "github.com/dalemusser/taskhub/internal/app/store/workspaces"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Workspaces struct{ db *DB }

func (s *Workspaces) Create(_ context.Context, ws models.Workspace) (models.Workspace, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, w := range s.db.workspaces {
		if ws.Personal && w.Personal && w.OwnerID == ws.OwnerID {
			return models.Workspace{}, workspacestore.ErrDuplicate
		}
		if ws.PairKey != "" && w.PairKey == ws.PairKey {
			return models.Workspace{}, workspacestore.ErrDuplicate
		}
	}
	now := time.Now().UTC()
	if ws.ID.IsZero() {
		ws.ID = primitive.NewObjectID()
	}
	if _, ok := s.db.workspaces[ws.ID]; ok {
		return models.Workspace{}, workspacestore.ErrDuplicate
	}
	ws.NameCI = text.Fold(ws.Name)
	if ws.Status == "" {
		ws.Status = models.WorkspaceActive
	}
	ws.CreatedAt = now
	ws.UpdatedAt = now
	s.db.workspaces[ws.ID] = ws
	return ws, nil
}

func (s *Workspaces) find(match func(models.Workspace) bool) (models.Workspace, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, w := range s.db.workspaces {
		if w.IsActive() && match(w) {
			return w, nil
		}
	}
	return models.Workspace{}, workspacestore.ErrNotFound
}

func (s *Workspaces) GetByID(_ context.Context, id primitive.ObjectID) (models.Workspace, error) {
	return s.find(func(w models.Workspace) bool { return w.ID == id })
}

func (s *Workspaces) GetPersonal(_ context.Context, ownerID string) (models.Workspace, error) {
	return s.find(func(w models.Workspace) bool { return w.Personal && w.OwnerID == ownerID })
}

func (s *Workspaces) GetByPairKey(_ context.Context, key string) (models.Workspace, error) {
	return s.find(func(w models.Workspace) bool { return w.PairKey == key })
}

func (s *Workspaces) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Workspace, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []models.Workspace
	for _, id := range ids {
		if w, ok := s.db.workspaces[id]; ok && w.IsActive() {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Workspaces) Update(_ context.Context, id primitive.ObjectID, p workspacestore.Patch) (models.Workspace, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	w, ok := s.db.workspaces[id]
	if !ok || !w.IsActive() {
		return models.Workspace{}, workspacestore.ErrNotFound
	}
	if p.Name != nil {
		w.Name = *p.Name
		w.NameCI = text.Fold(*p.Name)
	}
	if p.Description != nil {
		w.Description = *p.Description
	}
	if p.Settings != nil {
		w.Settings = *p.Settings
	}
	w.UpdatedAt = time.Now().UTC()
	s.db.workspaces[id] = w
	return w, nil
}

func (s *Workspaces) MarkDeleting(_ context.Context, id primitive.ObjectID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	w, ok := s.db.workspaces[id]
	if !ok || !w.IsActive() {
		return workspacestore.ErrNotFound
	}
	w.Status = models.WorkspaceDeleting
	w.UpdatedAt = time.Now().UTC()
	s.db.workspaces[id] = w
	return nil
}

func (s *Workspaces) Delete(_ context.Context, id primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.workspaces[id]; !ok {
		return 0, nil
	}
	delete(s.db.workspaces, id)
	return 1, nil
}

func (s *Workspaces) ListDeleting(_ context.Context) ([]models.Workspace, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []models.Workspace
	for _, w := range s.db.workspaces {
		if w.Status == models.WorkspaceDeleting {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Workspaces) Existing(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	out := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.db.workspaces[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

// Restore puts back a workspace record exactly as given. Tests use it to
// simulate a cascade that stopped half way.
func (s *Workspaces) Restore(ws models.Workspace) {
	s.db.mu.Lock()
	s.db.workspaces[ws.ID] = ws
	s.db.mu.Unlock()
}

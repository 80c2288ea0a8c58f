package memstore

import (
	"context"
	"sort"
	"time"

	categorystore "github.com/dalemusser/taskhub/internal/app/store/categories"
	notestore "github.com/dalemusser/taskhub/internal/app/store/notes"
	taskstore "github.com/dalemusser/taskhub/internal/app/store/tasks"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func distinctWS[V any](m map[primitive.ObjectID]V, ws func(V) primitive.ObjectID) []primitive.ObjectID {
	seen := map[primitive.ObjectID]bool{}
	var out []primitive.ObjectID
	for _, v := range m {
		id := ws(v)
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return objectIDLess(out[i], out[j]) })
	return out
}

func deleteWS[V any](m map[primitive.ObjectID]V, wsID primitive.ObjectID, ws func(V) primitive.ObjectID) int64 {
	var n int64
	for id, v := range m {
		if ws(v) == wsID {
			delete(m, id)
			n++
		}
	}
	return n
}

type Tasks struct{ db *DB }

func taskWS(t models.Task) primitive.ObjectID { return t.WorkspaceID }

func (s *Tasks) Create(_ context.Context, t models.Task) (models.Task, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	now := time.Now().UTC()
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	s.db.tasks[t.ID] = t
	return t, nil
}

func (s *Tasks) GetByID(_ context.Context, id primitive.ObjectID) (models.Task, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	t, ok := s.db.tasks[id]
	if !ok {
		return models.Task{}, taskstore.ErrNotFound
	}
	return t, nil
}

func (s *Tasks) Replace(_ context.Context, t models.Task) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.tasks[t.ID]; !ok {
		return taskstore.ErrNotFound
	}
	s.db.tasks[t.ID] = t
	return nil
}

func (s *Tasks) Delete(_ context.Context, id primitive.ObjectID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.tasks[id]; !ok {
		return taskstore.ErrNotFound
	}
	delete(s.db.tasks, id)
	return nil
}

func (s *Tasks) ListByWorkspace(_ context.Context, wsID primitive.ObjectID) ([]models.Task, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	all := sortedValues(s.db.tasks, func(a, b models.Task) bool {
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	var out []models.Task
	for _, t := range all {
		if t.WorkspaceID == wsID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Tasks) UnsetCategory(_ context.Context, wsID, categoryID primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for id, t := range s.db.tasks {
		if t.WorkspaceID == wsID && t.CategoryID != nil && *t.CategoryID == categoryID {
			t.CategoryID = nil
			t.UpdatedAt = time.Now().UTC()
			s.db.tasks[id] = t
			n++
		}
	}
	return n, nil
}

func (s *Tasks) DeleteByWorkspace(_ context.Context, wsID primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return deleteWS(s.db.tasks, wsID, taskWS), nil
}

func (s *Tasks) DistinctWorkspaceIDs(_ context.Context) ([]primitive.ObjectID, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return distinctWS(s.db.tasks, taskWS), nil
}

type Notes struct{ db *DB }

func noteWS(n models.Note) primitive.ObjectID { return n.WorkspaceID }

func (s *Notes) Create(_ context.Context, n models.Note) (models.Note, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	now := time.Now().UTC()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	s.db.notes[n.ID] = n
	return n, nil
}

func (s *Notes) GetByID(_ context.Context, id primitive.ObjectID) (models.Note, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	n, ok := s.db.notes[id]
	if !ok {
		return models.Note{}, notestore.ErrNotFound
	}
	return n, nil
}

func (s *Notes) Replace(_ context.Context, n models.Note) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.notes[n.ID]; !ok {
		return notestore.ErrNotFound
	}
	s.db.notes[n.ID] = n
	return nil
}

func (s *Notes) Delete(_ context.Context, id primitive.ObjectID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.notes[id]; !ok {
		return notestore.ErrNotFound
	}
	delete(s.db.notes, id)
	return nil
}

func (s *Notes) ListByWorkspace(_ context.Context, wsID primitive.ObjectID) ([]models.Note, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	all := sortedValues(s.db.notes, func(a, b models.Note) bool {
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})
	var out []models.Note
	for _, n := range all {
		if n.WorkspaceID == wsID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Notes) DeleteByWorkspace(_ context.Context, wsID primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return deleteWS(s.db.notes, wsID, noteWS), nil
}

func (s *Notes) DistinctWorkspaceIDs(_ context.Context) ([]primitive.ObjectID, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return distinctWS(s.db.notes, noteWS), nil
}

type Categories struct{ db *DB }

func categoryWS(c models.Category) primitive.ObjectID { return c.WorkspaceID }

func (s *Categories) keyTaken(c models.Category) bool {
	for _, o := range s.db.categories {
		if o.ID != c.ID && o.WorkspaceID == c.WorkspaceID && o.Key == c.Key {
			return true
		}
	}
	return false
}

func (s *Categories) insertLocked(c models.Category, now time.Time) (models.Category, error) {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if s.keyTaken(c) {
		return models.Category{}, categorystore.ErrDuplicate
	}
	s.db.categories[c.ID] = c
	return c, nil
}

func (s *Categories) Create(_ context.Context, c models.Category) (models.Category, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.insertLocked(c, time.Now().UTC())
}

func (s *Categories) CreateMany(_ context.Context, cats []models.Category) ([]models.Category, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	now := time.Now().UTC()
	out := make([]models.Category, 0, len(cats))
	for _, c := range cats {
		got, err := s.insertLocked(c, now)
		if err != nil {
			for _, done := range out {
				delete(s.db.categories, done.ID)
			}
			return nil, err
		}
		out = append(out, got)
	}
	return out, nil
}

func (s *Categories) GetByID(_ context.Context, id primitive.ObjectID) (models.Category, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	c, ok := s.db.categories[id]
	if !ok {
		return models.Category{}, categorystore.ErrNotFound
	}
	return c, nil
}

func (s *Categories) Replace(_ context.Context, c models.Category) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.categories[c.ID]; !ok {
		return categorystore.ErrNotFound
	}
	if s.keyTaken(c) {
		return categorystore.ErrDuplicate
	}
	s.db.categories[c.ID] = c
	return nil
}

func (s *Categories) Delete(_ context.Context, id primitive.ObjectID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.categories[id]; !ok {
		return categorystore.ErrNotFound
	}
	delete(s.db.categories, id)
	return nil
}

func (s *Categories) DeleteByIDs(_ context.Context, ids []primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := s.db.categories[id]; ok {
			delete(s.db.categories, id)
			n++
		}
	}
	return n, nil
}

func (s *Categories) ListByWorkspace(_ context.Context, wsID primitive.ObjectID) ([]models.Category, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	all := sortedValues(s.db.categories, func(a, b models.Category) bool {
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return objectIDLess(a.ID, b.ID)
	})
	var out []models.Category
	for _, c := range all {
		if c.WorkspaceID == wsID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Categories) DeleteByWorkspace(_ context.Context, wsID primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return deleteWS(s.db.categories, wsID, categoryWS), nil
}

func (s *Categories) DistinctWorkspaceIDs(_ context.Context) ([]primitive.ObjectID, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return distinctWS(s.db.categories, categoryWS), nil
}

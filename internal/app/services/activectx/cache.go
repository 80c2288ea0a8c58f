package activectx

import (
	"sort"

	"github.com/dalemusser/taskhub/internal/app/services/content"
	"github.com/dalemusser/taskhub/internal/app/system/realtime"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// scopeCache is the session's copy of the current scope. It starts from
// the staged snapshot and changes only through delivered events.
type scopeCache struct {
	wsID       primitive.ObjectID
	tasks      map[string]models.Task
	notes      map[string]models.Note
	categories map[string]models.Category
}

func newScopeCache(sc content.Scope) *scopeCache {
	c := &scopeCache{
		wsID:       sc.WorkspaceID,
		tasks:      make(map[string]models.Task, len(sc.Tasks)),
		notes:      make(map[string]models.Note, len(sc.Notes)),
		categories: make(map[string]models.Category, len(sc.Categories)),
	}
	for _, t := range sc.Tasks {
		c.tasks[t.ID.Hex()] = t
	}
	for _, n := range sc.Notes {
		c.notes[n.ID.Hex()] = n
	}
	for _, k := range sc.Categories {
		c.categories[k.ID.Hex()] = k
	}
	return c
}

func (c *scopeCache) apply(events []realtime.Event) {
	for _, e := range events {
		if e.WorkspaceID != c.wsID {
			continue
		}
		switch e.Collection {
		case realtime.Tasks:
			applyDoc(c.tasks, e)
		case realtime.Notes:
			applyDoc(c.notes, e)
		case realtime.Categories:
			applyDoc(c.categories, e)
		}
	}
}

func applyDoc[T any](m map[string]T, e realtime.Event) {
	if e.Type == realtime.Removed {
		delete(m, e.ID)
		return
	}
	if doc, ok := e.Doc.(T); ok {
		m[e.ID] = doc
	}
}

func (c *scopeCache) scope() content.Scope {
	sc := content.Scope{
		WorkspaceID: c.wsID,
		Tasks:       make([]models.Task, 0, len(c.tasks)),
		Notes:       make([]models.Note, 0, len(c.notes)),
		Categories:  make([]models.Category, 0, len(c.categories)),
	}
	for _, t := range c.tasks {
		sc.Tasks = append(sc.Tasks, t)
	}
	for _, n := range c.notes {
		sc.Notes = append(sc.Notes, n)
	}
	for _, k := range c.categories {
		sc.Categories = append(sc.Categories, k)
	}
	sort.Slice(sc.Tasks, func(i, j int) bool {
		a, b := sc.Tasks[i], sc.Tasks[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID.Hex() < b.ID.Hex()
	})
	sort.Slice(sc.Notes, func(i, j int) bool {
		a, b := sc.Notes[i], sc.Notes[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		return a.ID.Hex() > b.ID.Hex()
	})
	sort.Slice(sc.Categories, func(i, j int) bool {
		a, b := sc.Categories[i], sc.Categories[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID.Hex() < b.ID.Hex()
	})
	return sc
}

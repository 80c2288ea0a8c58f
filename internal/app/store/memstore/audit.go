package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Audit struct{ db *DB }

func (s *Audit) Log(_ context.Context, e audit.Event) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.audit = append(s.db.audit, e)
	return nil
}

func (s *Audit) matching(f audit.QueryFilter) []audit.Event {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []audit.Event
	for i := len(s.db.audit) - 1; i >= 0; i-- {
		if e := s.db.audit[i]; f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Query returns matching events, most recent first, later writes winning
// ties. The limit defaults to 100.
func (s *Audit) Query(_ context.Context, f audit.QueryFilter) ([]audit.Event, error) {
	out := s.matching(f)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if f.Offset >= int64(len(out)) {
		return nil, nil
	}
	out = out[f.Offset:]
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Audit) CountByFilter(_ context.Context, f audit.QueryFilter) (int64, error) {
	return int64(len(s.matching(f))), nil
}

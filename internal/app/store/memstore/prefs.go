package memstore

import "context"

type Prefs struct{ db *DB }

func (s *Prefs) Get(_ context.Context, userID, key string) (string, bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	v, ok := s.db.prefs[prefKey{userID, key}]
	return v, ok, nil
}

func (s *Prefs) Set(_ context.Context, userID, key, value string) error {
	s.db.mu.Lock()
	s.db.prefs[prefKey{userID, key}] = value
	s.db.mu.Unlock()
	return nil
}

func (s *Prefs) Remove(_ context.Context, userID, key string) error {
	s.db.mu.Lock()
	delete(s.db.prefs, prefKey{userID, key})
	s.db.mu.Unlock()
	return nil
}

package memstore

import (
	"context"
	"time"

	sessionstore "github.com/dalemusser/taskhub/internal/app/store/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Sessions struct{ db *DB }

func (s *Sessions) Create(_ context.Context, sess sessionstore.Session) (sessionstore.Session, error) {
	now := time.Now().UTC()
	if sess.ID.IsZero() {
		sess.ID = primitive.NewObjectID()
	}
	sess.LoginAt = now
	sess.LastActiveAt = now
	s.db.mu.Lock()
	s.db.sessions[sess.Token] = sess
	s.db.mu.Unlock()
	return sess, nil
}

func (s *Sessions) GetByToken(_ context.Context, token string) (sessionstore.Session, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	sess, ok := s.db.sessions[token]
	if !ok {
		return sessionstore.Session{}, sessionstore.ErrNotFound
	}
	return sess, nil
}

func (s *Sessions) Touch(_ context.Context, token, currentWorkspace string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sess, ok := s.db.sessions[token]
	if !ok || sess.LogoutAt != nil {
		return sessionstore.ErrNotFound
	}
	sess.LastActiveAt = time.Now().UTC()
	sess.CurrentWorkspace = currentWorkspace
	s.db.sessions[token] = sess
	return nil
}

func (s *Sessions) closeLocked(token, reason string, now time.Time) {
	sess := s.db.sessions[token]
	if sess.LogoutAt != nil {
		return
	}
	sess.LogoutAt = &now
	sess.EndReason = reason
	sess.DurationSecs = int64(now.Sub(sess.LoginAt).Seconds())
	s.db.sessions[token] = sess
}

func (s *Sessions) Close(_ context.Context, token, reason string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.sessions[token]; !ok {
		return sessionstore.ErrNotFound
	}
	s.closeLocked(token, reason, time.Now().UTC())
	return nil
}

func (s *Sessions) ActiveByUser(_ context.Context, userID string) ([]sessionstore.Session, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []sessionstore.Session
	for _, sess := range s.db.sessions {
		if sess.UserID == userID && sess.LogoutAt == nil {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *Sessions) CloseInactive(_ context.Context, threshold time.Duration) ([]string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	now := time.Now().UTC()
	cutoff := now.Add(-threshold)
	var tokens []string
	for token, sess := range s.db.sessions {
		if sess.LogoutAt == nil && sess.LastActiveAt.Before(cutoff) {
			s.closeLocked(token, sessionstore.EndInactive, now)
			tokens = append(tokens, token)
		}
	}
	return tokens, nil
}

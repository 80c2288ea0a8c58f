// internal/app/store/sessions/store.go
package sessions

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// End reasons
const (
	EndLogout   = "logout"
	EndInactive = "inactive"
	EndShutdown = "shutdown"
)

var ErrNotFound = errors.New("session not found")

// Session records one signed-in browser session and the workspace it was
// last looking at.
type Session struct {
	ID     primitive.ObjectID `bson:"_id,omitempty"`
	Token  string             `bson:"token"`
	UserID string             `bson:"user_id"`

	// CurrentWorkspace is a workspace hex id, or empty for Personal.
	CurrentWorkspace string `bson:"current_workspace,omitempty"`

	LoginAt      time.Time  `bson:"login_at"`
	LogoutAt     *time.Time `bson:"logout_at,omitempty"`
	LastActiveAt time.Time  `bson:"last_active_at"`
	EndReason    string     `bson:"end_reason,omitempty"`

	IP        string `bson:"ip,omitempty"`
	UserAgent string `bson:"user_agent,omitempty"`

	DurationSecs int64 `bson:"duration_secs,omitempty"`
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("sessions")}
}

// Create starts tracking a session.
func (s *Store) Create(ctx context.Context, sess Session) (Session, error) {
	now := time.Now().UTC()
	if sess.ID.IsZero() {
		sess.ID = primitive.NewObjectID()
	}
	sess.LoginAt = now
	sess.LastActiveAt = now
	if _, err := s.c.InsertOne(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// GetByToken returns the session with token, open or closed.
func (s *Store) GetByToken(ctx context.Context, token string) (Session, error) {
	var sess Session
	if err := s.c.FindOne(ctx, bson.M{"token": token}).Decode(&sess); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return sess, nil
}

// Touch marks an open session active and records its current workspace.
func (s *Store) Touch(ctx context.Context, token, currentWorkspace string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"token": token, "logout_at": nil},
		bson.M{"$set": bson.M{
			"last_active_at":    time.Now().UTC(),
			"current_workspace": currentWorkspace,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Close ends an open session with reason and records its duration.
func (s *Store) Close(ctx context.Context, token, reason string) error {
	sess, err := s.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if sess.LogoutAt != nil {
		return nil
	}
	now := time.Now().UTC()
	_, err = s.c.UpdateOne(ctx,
		bson.M{"_id": sess.ID, "logout_at": nil},
		bson.M{"$set": bson.M{
			"logout_at":     now,
			"end_reason":    reason,
			"duration_secs": int64(now.Sub(sess.LoginAt).Seconds()),
		}},
	)
	return err
}

// ActiveByUser returns the open sessions of userID.
func (s *Store) ActiveByUser(ctx context.Context, userID string) ([]Session, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID, "logout_at": nil})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []Session
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CloseInactive closes open sessions idle for longer than threshold and
// returns their tokens.
func (s *Store) CloseInactive(ctx context.Context, threshold time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	cur, err := s.c.Find(ctx,
		bson.M{"logout_at": nil, "last_active_at": bson.M{"$lt": cutoff}},
		options.Find().SetProjection(bson.M{"token": 1}),
	)
	if err != nil {
		return nil, err
	}
	var idle []Session
	if err := cur.All(ctx, &idle); err != nil {
		return nil, err
	}
	var tokens []string
	for _, sess := range idle {
		if err := s.Close(ctx, sess.Token, EndInactive); err != nil {
			return tokens, err
		}
		tokens = append(tokens, sess.Token)
	}
	return tokens, nil
}

func Indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_sessions_token"),
		},
		{
			Keys:    bson.D{{Key: "logout_at", Value: 1}, {Key: "last_active_at", Value: -1}},
			Options: options.Index().SetName("idx_sessions_active"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "login_at", Value: -1}},
			Options: options.Index().SetName("idx_sessions_user"),
		},
	}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, Indexes())
	return err
}

// Package userworkspacestore keeps the per-user workspace index.
package userworkspacestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("workspace association not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("user_workspaces")}
}

func key(userID string, wsID primitive.ObjectID) bson.M {
	return bson.M{"user_id": userID, "workspace_id": wsID}
}

// Put writes uw as the association for its (user, workspace) pair,
// replacing any existing record.
func (s *Store) Put(ctx context.Context, uw models.UserWorkspace) (models.UserWorkspace, error) {
	now := time.Now().UTC()
	if uw.JoinedAt.IsZero() {
		uw.JoinedAt = now
	}
	if uw.LastAccessed.IsZero() {
		uw.LastAccessed = now
	}
	if uw.ID.IsZero() {
		if cur, err := s.Get(ctx, uw.UserID, uw.WorkspaceID); err == nil {
			uw.ID = cur.ID
		} else {
			uw.ID = primitive.NewObjectID()
		}
	}
	_, err := s.c.ReplaceOne(ctx, key(uw.UserID, uw.WorkspaceID), uw, options.Replace().SetUpsert(true))
	if err != nil {
		return models.UserWorkspace{}, err
	}
	return uw, nil
}

// Get returns the association of userID with wsID.
func (s *Store) Get(ctx context.Context, userID string, wsID primitive.ObjectID) (models.UserWorkspace, error) {
	var uw models.UserWorkspace
	if err := s.c.FindOne(ctx, key(userID, wsID)).Decode(&uw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.UserWorkspace{}, ErrNotFound
		}
		return models.UserWorkspace{}, err
	}
	return uw, nil
}

// ListByUser returns userID's associations, most recently accessed first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]models.UserWorkspace, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "last_accessed", Value: -1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.UserWorkspace
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) set(ctx context.Context, userID string, wsID primitive.ObjectID, fields bson.M) error {
	res, err := s.c.UpdateOne(ctx, key(userID, wsID), bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Touch records an access at time at.
func (s *Store) Touch(ctx context.Context, userID string, wsID primitive.ObjectID, at time.Time) error {
	return s.set(ctx, userID, wsID, bson.M{"last_accessed": at})
}

// SetRole mirrors a membership role change.
func (s *Store) SetRole(ctx context.Context, userID string, wsID primitive.ObjectID, role models.Role) error {
	return s.set(ctx, userID, wsID, bson.M{"role": role})
}

// SetFavorite pins or unpins a workspace for userID.
func (s *Store) SetFavorite(ctx context.Context, userID string, wsID primitive.ObjectID, fav bool) error {
	return s.set(ctx, userID, wsID, bson.M{"is_favorite": fav})
}

// Delete removes the association; a missing one is not an error.
func (s *Store) Delete(ctx context.Context, userID string, wsID primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, key(userID, wsID))
	return err
}

// DeleteByWorkspace removes every association with wsID.
func (s *Store) DeleteByWorkspace(ctx context.Context, wsID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"workspace_id": wsID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Indexes returns the desired indexes of the user_workspaces collection.
func Indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "workspace_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_uw_user_ws"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "last_accessed", Value: -1}},
			Options: options.Index().SetName("idx_uw_user_last_accessed"),
		},
		{
			Keys:    bson.D{{Key: "workspace_id", Value: 1}},
			Options: options.Index().SetName("idx_uw_ws"),
		},
	}
}

// EnsureIndexes creates indexes for the user_workspaces collection.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, Indexes())
	return err
}

// Package prefstore keeps small per-user string values that survive
// logout, such as the theme and the last active workspace.
package prefstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("preferences")}
}

// Get returns the value stored under key and whether one exists.
func (s *Store) Get(ctx context.Context, userID, key string) (string, bool, error) {
	var p models.Preference
	err := s.c.FindOne(ctx, bson.M{"user_id": userID, "key": key}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return p.Value, true, nil
}

func (s *Store) Set(ctx context.Context, userID, key, value string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"user_id": userID, "key": key},
		bson.M{"$set": bson.M{"value": value, "updated_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	return err
}

// Remove deletes key; a missing key is not an error.
func (s *Store) Remove(ctx context.Context, userID, key string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"user_id": userID, "key": key})
	return err
}

func Indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_prefs_user_key"),
		},
	}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, Indexes())
	return err
}

// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("membership not found")
	// ErrDuplicate is returned when the (workspace, user) pair already has a
	// record, or a second active owner would be created.
	ErrDuplicate = errors.New("membership already exists")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("workspace_members")}
}

// Insert adds a membership record. A zero ID is assigned.
func (s *Store) Insert(ctx context.Context, m models.Membership) (models.Membership, error) {
	now := time.Now().UTC()
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now
	}
	m.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Membership{}, ErrDuplicate
		}
		return models.Membership{}, err
	}
	return m, nil
}

// Replace overwrites the record with m.ID. Used to reactivate a removed
// membership and to restore a previous version on rollback.
func (s *Store) Replace(ctx context.Context, m models.Membership) error {
	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicate
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the membership of userID in wsID in any status.
func (s *Store) Get(ctx context.Context, wsID primitive.ObjectID, userID string) (models.Membership, error) {
	return s.findOne(ctx, bson.M{"workspace_id": wsID, "user_id": userID})
}

// GetByID returns a membership by its record id.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Membership, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.Membership, error) {
	var m models.Membership
	if err := s.c.FindOne(ctx, filter).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Membership{}, ErrNotFound
		}
		return models.Membership{}, err
	}
	return m, nil
}

// ListActive returns the active members of wsID, oldest first.
func (s *Store) ListActive(ctx context.Context, wsID primitive.ObjectID) ([]models.Membership, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"workspace_id": wsID, "status": models.MemberActive},
		options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Membership
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetRole changes the role of an active, non-owner membership.
func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, role models.Role) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.MemberActive, "role": bson.M{"$ne": models.RoleOwner}},
		bson.M{"$set": bson.M{"role": role, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRemoved deactivates an active, non-owner membership.
func (s *Store) MarkRemoved(ctx context.Context, id primitive.ObjectID, by string, at time.Time) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.MemberActive, "role": bson.M{"$ne": models.RoleOwner}},
		bson.M{"$set": bson.M{
			"status":     models.MemberRemoved,
			"removed_at": at,
			"removed_by": by,
			"updated_at": at,
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

// Delete removes a membership record outright. Only rollback uses it.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// DeleteByWorkspace erases every membership of wsID.
func (s *Store) DeleteByWorkspace(ctx context.Context, wsID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"workspace_id": wsID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Indexes returns the desired indexes of the workspace_members collection.
func Indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// Exactly one record per (workspace, user)
		{
			Keys:    bson.D{{Key: "workspace_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_member_ws_user"),
		},
		// At most one active owner per workspace
		{
			Keys: bson.D{{Key: "workspace_id", Value: 1}, {Key: "role", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_member_ws_active_owner").
				SetPartialFilterExpression(bson.M{"role": models.RoleOwner, "status": models.MemberActive}),
		},
		{
			Keys:    bson.D{{Key: "workspace_id", Value: 1}, {Key: "status", Value: 1}, {Key: "joined_at", Value: 1}},
			Options: options.Index().SetName("idx_member_ws_status_joined"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_member_user_status"),
		},
	}
}

// EnsureIndexes creates indexes for the workspace_members collection.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, Indexes())
	return err
}

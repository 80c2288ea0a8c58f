// internal/app/store/workspaces/workspacestore.go
package workspacestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound = errors.New("workspace not found")
	// ErrDuplicate covers the per-owner personal workspace and the pair key.
	ErrDuplicate = errors.New("workspace already exists")
)

// Patch lists the mutable fields of a workspace; nil fields are left alone.
type Patch struct {
	Name        *string
	Description *string
	Settings    *models.WorkspaceSettings
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("workspaces")}
}

// live restricts a filter to workspaces not being deleted.
func live(f bson.M) bson.M {
	f["status"] = bson.M{"$ne": models.WorkspaceDeleting}
	return f
}

// Create inserts a new workspace. A zero ID is assigned.
func (s *Store) Create(ctx context.Context, ws models.Workspace) (models.Workspace, error) {
	now := time.Now().UTC()
	if ws.ID.IsZero() {
		ws.ID = primitive.NewObjectID()
	}
	ws.NameCI = text.Fold(ws.Name)
	if ws.Status == "" {
		ws.Status = models.WorkspaceActive
	}
	ws.CreatedAt = now
	ws.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, ws); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Workspace{}, ErrDuplicate
		}
		return models.Workspace{}, err
	}
	return ws, nil
}

// GetByID retrieves a live workspace.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Workspace, error) {
	return s.findOne(ctx, live(bson.M{"_id": id}))
}

// GetPersonal retrieves the owner's personal workspace.
func (s *Store) GetPersonal(ctx context.Context, ownerID string) (models.Workspace, error) {
	return s.findOne(ctx, live(bson.M{"owner_id": ownerID, "personal": true}))
}

// GetByPairKey retrieves the shared workspace of a user pair.
func (s *Store) GetByPairKey(ctx context.Context, key string) (models.Workspace, error) {
	return s.findOne(ctx, live(bson.M{"pair_key": key}))
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.Workspace, error) {
	var ws models.Workspace
	if err := s.c.FindOne(ctx, filter).Decode(&ws); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Workspace{}, ErrNotFound
		}
		return models.Workspace{}, err
	}
	return ws, nil
}

// GetByIDs returns the live workspaces among ids, in no particular order.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Workspace, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, live(bson.M{"_id": bson.M{"$in": ids}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Workspace
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies p and returns the updated workspace.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, p Patch) (models.Workspace, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if p.Name != nil {
		set["name"] = *p.Name
		set["name_ci"] = text.Fold(*p.Name)
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Settings != nil {
		set["settings"] = *p.Settings
	}
	var ws models.Workspace
	err := s.c.FindOneAndUpdate(ctx,
		live(bson.M{"_id": id}),
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&ws)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Workspace{}, ErrNotFound
		}
		return models.Workspace{}, err
	}
	return ws, nil
}

// MarkDeleting flips a live workspace into the deleting state. From then
// on readers treat it as gone.
func (s *Store) MarkDeleting(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		live(bson.M{"_id": id}),
		bson.M{"$set": bson.M{"status": models.WorkspaceDeleting, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a workspace by ID regardless of state.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListDeleting returns workspaces whose cascade has not finished.
func (s *Store) ListDeleting(ctx context.Context) ([]models.Workspace, error) {
	cur, err := s.c.Find(ctx, bson.M{"status": models.WorkspaceDeleting})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Workspace
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Existing reports which of ids still have a workspace record, in any state.
func (s *Store) Existing(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	out := make(map[primitive.ObjectID]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = true
	}
	return out, cur.Err()
}

// Indexes returns the desired indexes of the workspaces collection.
func Indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// One personal workspace per owner
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "personal", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_workspace_personal_owner").
				SetPartialFilterExpression(bson.M{"personal": true}),
		},
		// One shared workspace per user pair
		{
			Keys: bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_workspace_pair_key").
				SetPartialFilterExpression(bson.M{"pair_key": bson.M{"$type": "string"}}),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_workspace_status"),
		},
	}
}

// EnsureIndexes creates indexes for the workspaces collection.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, Indexes())
	return err
}

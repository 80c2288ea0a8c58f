// internal/app/store/invitations/invitationstore.go
package invitationstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OrderedIndex is the index the newest-first pending query is pinned to.
const OrderedIndex = "idx_inv_email_status_created"

var (
	ErrNotFound = errors.New("invitation not found")
	// ErrDuplicatePending is returned when the same inviter already has a
	// pending invitation to the same address for the same target, or the
	// workspace already has one pending for that address.
	ErrDuplicatePending = errors.New("pending invitation already exists")
	// ErrNotPending is returned by Resolve when the invitation has already
	// left the pending state.
	ErrNotPending = errors.New("invitation is not pending")
	// ErrIndexUnavailable is returned by the ordered listing when the
	// backing index does not exist.
	ErrIndexUnavailable = errors.New("ordered invitation index unavailable")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("invitations")}
}

// Create inserts a pending invitation. A zero ID is assigned.
func (s *Store) Create(ctx context.Context, inv models.Invitation) (models.Invitation, error) {
	if inv.ID.IsZero() {
		inv.ID = primitive.NewObjectID()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	inv.Status = models.InvitePending
	if _, err := s.c.InsertOne(ctx, inv); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Invitation{}, ErrDuplicatePending
		}
		return models.Invitation{}, err
	}
	return inv, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.Invitation, error) {
	var inv models.Invitation
	if err := s.c.FindOne(ctx, filter).Decode(&inv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Invitation{}, ErrNotFound
		}
		return models.Invitation{}, err
	}
	return inv, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Invitation, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) GetByToken(ctx context.Context, token string) (models.Invitation, error) {
	if token == "" {
		return models.Invitation{}, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"token": token})
}

// ListPendingForInvitee returns the pending invitations addressed to email
// that have not expired at now.
//
// With ordered set the query is pinned to OrderedIndex and sorted newest
// first; if that index is missing ErrIndexUnavailable is returned and the
// caller is expected to retry unordered.
func (s *Store) ListPendingForInvitee(ctx context.Context, email string, now time.Time, ordered bool) ([]models.Invitation, error) {
	filter := bson.M{
		"invited_email": email,
		"status":        models.InvitePending,
		"expires_at":    bson.M{"$gt": now},
	}
	opts := options.Find()
	if ordered {
		opts.SetHint(OrderedIndex).SetSort(bson.D{{Key: "created_at", Value: -1}})
	}
	out, err := s.find(ctx, filter, opts)
	if err != nil && ordered && isBadHint(err) {
		return nil, ErrIndexUnavailable
	}
	return out, err
}

// ListByWorkspace returns every invitation of wsID, newest first.
func (s *Store) ListByWorkspace(ctx context.Context, wsID primitive.ObjectID) ([]models.Invitation, error) {
	return s.find(ctx, bson.M{"workspace_id": wsID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// ListByInviter returns invitations sent by inviterID, newest first.
func (s *Store) ListByInviter(ctx context.Context, inviterID string) ([]models.Invitation, error) {
	return s.find(ctx, bson.M{"invited_by": inviterID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Invitation, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Invitation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve moves a pending invitation to status. Only the resolution
// fields change. ErrNotPending is returned if another resolution won.
func (s *Store) Resolve(ctx context.Context, id primitive.ObjectID, status string, at time.Time, by string) (models.Invitation, error) {
	set := bson.M{"status": status, "resolved_at": at}
	if by != "" {
		set["resolved_by"] = by
	}
	var inv models.Invitation
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": models.InvitePending},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&inv)
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Invitation{}, err
	}
	if _, gerr := s.GetByID(ctx, id); gerr != nil {
		return models.Invitation{}, gerr
	}
	return models.Invitation{}, ErrNotPending
}

// ExpireDue marks every pending invitation past its deadline as expired
// and returns the invitations it changed.
func (s *Store) ExpireDue(ctx context.Context, now time.Time) ([]models.Invitation, error) {
	due, err := s.find(ctx, bson.M{
		"status":     models.InvitePending,
		"expires_at": bson.M{"$lte": now},
	}, options.Find())
	if err != nil {
		return nil, err
	}
	var out []models.Invitation
	for _, inv := range due {
		got, err := s.Resolve(ctx, inv.ID, models.InviteExpired, now, "")
		if errors.Is(err, ErrNotPending) || errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return out, err
		}
		out = append(out, got)
	}
	return out, nil
}

// DeleteByWorkspace removes every invitation of wsID.
func (s *Store) DeleteByWorkspace(ctx context.Context, wsID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"workspace_id": wsID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DistinctWorkspaceIDs returns the workspace ids referenced by any
// invitation.
func (s *Store) DistinctWorkspaceIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	vals, err := s.c.Distinct(ctx, "workspace_id", bson.M{"workspace_id": bson.M{"$exists": true}})
	if err != nil {
		return nil, err
	}
	out := make([]primitive.ObjectID, 0, len(vals))
	for _, v := range vals {
		if id, ok := v.(primitive.ObjectID); ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func isBadHint(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return strings.Contains(strings.ToLower(ce.Message), "hint")
	}
	return strings.Contains(strings.ToLower(err.Error()), "hint provided does not correspond")
}

// Indexes returns the desired indexes of the invitations collection.
func Indexes() []mongo.IndexModel {
	pending := bson.M{"status": models.InvitePending}
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_inv_token"),
		},
		{
			Keys: bson.D{{Key: "invited_by", Value: 1}, {Key: "invited_email", Value: 1}, {Key: "target_key", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(pending).
				SetName("uniq_inv_pending_pair"),
		},
		{
			Keys: bson.D{{Key: "workspace_id", Value: 1}, {Key: "invited_email", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"status":       models.InvitePending,
					"workspace_id": bson.M{"$exists": true},
				}).
				SetName("uniq_inv_pending_ws_email"),
		},
		{
			Keys:    bson.D{{Key: "invited_email", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName(OrderedIndex),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("idx_inv_status_expires"),
		},
		{
			Keys:    bson.D{{Key: "invited_by", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_inv_inviter_created"),
		},
	}
}

// EnsureIndexes creates indexes for the invitations collection.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, Indexes())
	return err
}

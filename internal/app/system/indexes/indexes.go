// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/taskhub/internal/app/store/audit"
	categorystore "github.com/dalemusser/taskhub/internal/app/store/categories"
	invitationstore "github.com/dalemusser/taskhub/internal/app/store/invitations"
	membershipstore "github.com/dalemusser/taskhub/internal/app/store/memberships"
	notestore "github.com/dalemusser/taskhub/internal/app/store/notes"
	"github.com/dalemusser/taskhub/internal/app/store/oauthstate"
	prefstore "github.com/dalemusser/taskhub/internal/app/store/prefs"
	"github.com/dalemusser/taskhub/internal/app/store/sessions"
	taskstore "github.com/dalemusser/taskhub/internal/app/store/tasks"
	userstore "github.com/dalemusser/taskhub/internal/app/store/users"
	userworkspacestore "github.com/dalemusser/taskhub/internal/app/store/userworkspaces"
	workspacestore "github.com/dalemusser/taskhub/internal/app/store/workspaces"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Set is the desired index list of one collection.
type Set struct {
	Collection string
	Models     []mongo.IndexModel
}

// All returns the index sets of every collection the service owns. Each
// store package is the source of truth for its own indexes.
func All() []Set {
	return []Set{
		{"users", userstore.Indexes()},
		{"workspaces", workspacestore.Indexes()},
		{"workspace_members", membershipstore.Indexes()},
		{"user_workspaces", userworkspacestore.Indexes()},
		{"invitations", invitationstore.Indexes()},
		{"tasks", taskstore.Indexes()},
		{"notes", notestore.Indexes()},
		{"categories", categorystore.Indexes()},
		{"preferences", prefstore.Indexes()},
		{"sessions", sessions.Indexes()},
		{"audit_events", audit.Indexes()},
		{"oauth_states", oauthstate.Indexes()},
	}
}

/*
EnsureAll is called at startup. Reconciling is idempotent. Errors are
aggregated so every problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string
	for _, set := range All() {
		if err := ensureIndexSet(ctx, db.Collection(set.Collection), set.Models); err != nil {
			problems = append(problems, set.Collection+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Reconcile a set of desired indexes for one collection                       */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

type desired struct {
	model  mongo.IndexModel
	name   string
	unique bool
	sig    string
}

func describe(m mongo.IndexModel) desired {
	d := desired{model: m}
	if keys, ok := m.Keys.(bson.D); ok {
		d.sig = keySig(keys)
	}
	if m.Options != nil {
		if m.Options.Name != nil {
			d.name = *m.Options.Name
		}
		d.unique = m.Options.Unique != nil && *m.Options.Unique
	}
	return d
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func isUnique(p *bool) bool { return p != nil && *p }

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB return IndexOptionsConflict when an index with the same keys
// already exists under a different name or with different options.
func isOptionsConflictErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "IndexOptionsConflict")
}

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	out := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return out
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out
}

// recreate drops the index named old and creates d in its place.
func recreate(ctx context.Context, coll *mongo.Collection, old string, d desired) error {
	if _, err := coll.Indexes().DropOne(ctx, old); err != nil {
		return fmt.Errorf("drop %s failed: %w", old, err)
	}
	return create(ctx, coll, d)
}

func create(ctx context.Context, coll *mongo.Collection, d desired) error {
	if _, err := coll.Indexes().CreateOne(ctx, d.model); err != nil {
		if d.unique && isDuplicateKeyErr(err) {
			return fmt.Errorf("cannot create unique index (duplicates present on %s)", d.sig)
		}
		return err
	}
	return nil
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	fail := func(d desired, err error) {
		zap.L().Warn("index ensure failed",
			zap.String("collection", coll.Name()),
			zap.String("name", d.name),
			zap.String("keys", d.sig),
			zap.Error(err))
		errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), d.name, err))
	}

	for _, m := range models {
		d := describe(m)
		start := time.Now()
		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", d.name),
			zap.String("keys", d.sig),
			zap.Bool("unique", d.unique))

		existing := listExisting(ctx, coll)
		if ex, ok := existing[d.sig]; ok {
			switch {
			case isUnique(ex.Unique) != d.unique:
				// Options changed, e.g. upgrading to unique.
				if err := recreate(ctx, coll, ex.Name, d); err != nil {
					fail(d, err)
					continue
				}
				log.Info("index dropped and recreated", zap.Duration("took", time.Since(start)))
			case d.name != "" && ex.Name != d.name:
				if err := recreate(ctx, coll, ex.Name, d); err != nil {
					fail(d, err)
					continue
				}
				log.Info("index renamed", zap.String("from", ex.Name), zap.Duration("took", time.Since(start)))
			default:
				log.Debug("reusing existing index", zap.Duration("took", time.Since(start)))
			}
			continue
		}

		err := create(ctx, coll, d)
		if err != nil && isOptionsConflictErr(err) {
			// Another index holds these keys under different options;
			// look it up again and replace it.
			if ex, ok := listExisting(ctx, coll)[d.sig]; ok {
				if isUnique(ex.Unique) == d.unique {
					log.Info("reusing existing index (post-conflict)", zap.String("existing", ex.Name))
					continue
				}
				err = recreate(ctx, coll, ex.Name, d)
			}
		}
		if err != nil {
			fail(d, err)
			continue
		}
		log.Info("index ensured", zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

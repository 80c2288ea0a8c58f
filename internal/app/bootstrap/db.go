// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/taskhub/internal/app/store/audit"
	categorystore "github.com/dalemusser/taskhub/internal/app/store/categories"
	invitationstore "github.com/dalemusser/taskhub/internal/app/store/invitations"
	membershipstore "github.com/dalemusser/taskhub/internal/app/store/memberships"
	"github.com/dalemusser/taskhub/internal/app/store/memstore"
	notestore "github.com/dalemusser/taskhub/internal/app/store/notes"
	"github.com/dalemusser/taskhub/internal/app/store/oauthstate"
	prefstore "github.com/dalemusser/taskhub/internal/app/store/prefs"
	sessionstore "github.com/dalemusser/taskhub/internal/app/store/sessions"
	taskstore "github.com/dalemusser/taskhub/internal/app/store/tasks"
	userstore "github.com/dalemusser/taskhub/internal/app/store/users"
	userworkspacestore "github.com/dalemusser/taskhub/internal/app/store/userworkspaces"
	workspacestore "github.com/dalemusser/taskhub/internal/app/store/workspaces"
	"github.com/dalemusser/taskhub/internal/app/system/indexes"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/taskhub/internal/app/system/validators"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB opens the configured backend.
func ConnectDB(ctx context.Context, cfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	if cfg.Memory() {
		logger.Warn("using in-memory storage; data is lost on restart")
		return MemoryDeps(memstore.New()), nil
	}

	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetMaxPoolSize(cfg.MongoMaxPoolSize).
		SetMinPoolSize(cfg.MongoMinPoolSize).
		SetAppName("taskhub")

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}
	logger.Info("connected to MongoDB",
		zap.String("database", cfg.MongoDatabase),
		zap.Uint64("max_pool", cfg.MongoMaxPoolSize))

	return MongoDeps(client, cfg.MongoDatabase, logger), nil
}

// MongoDeps wires every store to one Mongo database.
func MongoDeps(client *mongo.Client, dbName string, logger *zap.Logger) DBDeps {
	db := client.Database(dbName)
	return DBDeps{
		Backend:       "mongo",
		MongoClient:   client,
		MongoDatabase: db,
		Tx:            txn.NewRunner(db, logger),
		Stores: Collections{
			Users:          userstore.New(db),
			Workspaces:     workspacestore.New(db),
			Memberships:    membershipstore.New(db),
			UserWorkspaces: userworkspacestore.New(db),
			Invitations:    invitationstore.New(db),
			Tasks:          taskstore.New(db),
			Notes:          notestore.New(db),
			Categories:     categorystore.New(db),
			Prefs:          prefstore.New(db),
			Sessions:       sessionstore.New(db),
			Audit:          audit.New(db),
			OAuthStates:    oauthstate.New(db),
		},
	}
}

// MemoryDeps wires every store to mem.
func MemoryDeps(mem *memstore.DB) DBDeps {
	return DBDeps{
		Backend: "memory",
		Tx:      txn.Direct{},
		Stores: Collections{
			Users:          mem.Users(),
			Workspaces:     mem.Workspaces(),
			Memberships:    mem.Memberships(),
			UserWorkspaces: mem.UserWorkspaces(),
			Invitations:    mem.Invitations(),
			Tasks:          mem.Tasks(),
			Notes:          mem.Notes(),
			Categories:     mem.Categories(),
			Prefs:          mem.Prefs(),
			Sessions:       mem.Sessions(),
			Audit:          mem.Audit(),
		},
	}
}

// EnsureSchema creates collections, validators and indexes. It is a no-op
// on the memory backend.
func EnsureSchema(ctx context.Context, cfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.MongoDatabase == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	if err := validators.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure validators failed", zap.Error(err))
		return fmt.Errorf("validators: %w", err)
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return fmt.Errorf("indexes: %w", err)
	}
	logger.Info("schema ensured", zap.String("database", cfg.MongoDatabase))
	return nil
}

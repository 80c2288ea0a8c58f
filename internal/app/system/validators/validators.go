// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/taskhub/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// collection describes what EnsureAll makes sure of for one collection.
type collection struct {
	name   string
	schema bson.M
	// preImages enables change-stream pre-images so deletes can be routed
	// to the right workspace by the realtime feeder.
	preImages bool
}

func collections() []collection {
	return []collection{
		{name: "users", schema: usersSchema()},
		{name: "workspaces", schema: workspacesSchema(), preImages: true},
		{name: "workspace_members", schema: membershipsSchema(), preImages: true},
		{name: "user_workspaces", schema: userWorkspacesSchema()},
		{name: "invitations", schema: invitationsSchema(), preImages: true},
		{name: "tasks", schema: scopedSchema("title"), preImages: true},
		{name: "notes", schema: scopedSchema("title"), preImages: true},
		{name: "categories", schema: scopedSchema("name", "key"), preImages: true},
		{name: "preferences"},
		{name: "sessions"},
		{name: "audit_events"},
		{name: "oauth_states"},
	}
}

// EnsureAll creates collections (if missing), attaches JSON-Schema
// validators and enables change-stream pre-images. On servers that don't
// support collMod options (e.g. some DocumentDB versions) we log and skip.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	for _, c := range collections() {
		if _, err := ensureCollection(ctx, db, c.name); err != nil {
			problems = append(problems, c.name+": "+err.Error())
			continue
		}
		if c.schema != nil {
			if err := collMod(ctx, db, c.name, bson.E{Key: "validator", Value: c.schema},
				bson.E{Key: "validationLevel", Value: "moderate"},
				bson.E{Key: "validationAction", Value: "error"}); err != nil {
				if !unsupported(err) {
					problems = append(problems, c.name+": "+err.Error())
				} else {
					zap.L().Info("validator skipped (unsupported)", zap.String("collection", c.name))
				}
			}
		}
		if c.preImages {
			// Pre-images need MongoDB 6.0+. Without them deletes still
			// reach subscribers that filter by document id only.
			if err := collMod(ctx, db, c.name, bson.E{Key: "changeStreamPreAndPostImages", Value: bson.M{"enabled": true}}); err != nil {
				zap.L().Info("change stream pre-images not enabled",
					zap.String("collection", c.name), zap.Error(err))
			}
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// ensureCollection idempotently makes sure name exists and reports whether
// it had to create it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	if exists, err := collectionExists(ctx, db, name); err == nil && exists {
		zap.L().Debug("collection exists", zap.String("collection", name))
		return false, nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExistsErr(err) {
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

func collMod(ctx context.Context, db *mongo.Database, name string, opts ...bson.E) error {
	cmd := append(bson.D{{Key: "collMod", Value: name}}, opts...)
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("collection options ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func commandMatches(err error, codes []int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		for _, c := range codes {
			if ce.Code == c {
				return true
			}
		}
	}
	s := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func isNamespaceExistsErr(err error) bool {
	return commandMatches(err, []int32{48}, "already exists", "namespace exists")
}

// unsupported covers "no such command" and "not implemented" answers.
func unsupported(err error) bool {
	return commandMatches(err, []int32{59, 115}, "no such command", "not implemented", "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func roleEnum(roles ...models.Role) bson.M {
	a := bson.A{}
	for _, r := range roles {
		a = append(a, string(r))
	}
	return bson.M{"enum": a}
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "email_ci", "display_name"},
			"properties": bson.M{
				"_id":           nonBlank,
				"email":         nonBlank,
				"email_ci":      nonBlank,
				"display_name":  bson.M{"bsonType": "string"},
				"photo_url":     bson.M{"bsonType": "string"},
				"last_login_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func workspacesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "owner_id", "status", "created_at"},
			"properties": bson.M{
				"name":        nonBlank,
				"name_ci":     bson.M{"bsonType": "string"},
				"description": bson.M{"bsonType": "string"},
				"owner_id":    nonBlank,
				"personal":    bson.M{"bsonType": "bool"},
				"pair_key":    bson.M{"bsonType": "string"},
				"status":      bson.M{"enum": bson.A{models.WorkspaceActive, models.WorkspaceDeleting}},
				"settings":    bson.M{"bsonType": "object"},
				"created_at":  bson.M{"bsonType": "date"},
			},
		},
	}
}

func membershipsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"workspace_id", "user_id", "role", "status", "joined_at"},
			"properties": bson.M{
				"workspace_id": bson.M{"bsonType": "objectId"},
				"user_id":      nonBlank,
				"role":         roleEnum(models.RoleOwner, models.RoleAdmin, models.RoleMember),
				"status":       bson.M{"enum": bson.A{models.MemberActive, models.MemberRemoved}},
				"joined_at":    bson.M{"bsonType": "date"},
			},
		},
	}
}

func userWorkspacesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "workspace_id", "role", "last_accessed"},
			"properties": bson.M{
				"user_id":       nonBlank,
				"workspace_id":  bson.M{"bsonType": "objectId"},
				"role":          roleEnum(models.RoleOwner, models.RoleAdmin, models.RoleMember),
				"is_favorite":   bson.M{"bsonType": "bool"},
				"last_accessed": bson.M{"bsonType": "date"},
			},
		},
	}
}

func invitationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"target_key", "invited_by", "invited_email", "role", "token", "status", "created_at", "expires_at"},
			"properties": bson.M{
				"workspace_id":  bson.M{"bsonType": "objectId"},
				"target_key":    nonBlank,
				"invited_by":    nonBlank,
				"invited_email": nonBlank,
				"role":          roleEnum(models.RoleAdmin, models.RoleMember),
				"token":         nonBlank,
				"status": bson.M{"enum": bson.A{
					models.InvitePending, models.InviteAccepted, models.InviteRejected, models.InviteExpired,
				}},
				"created_at":  bson.M{"bsonType": "date"},
				"expires_at":  bson.M{"bsonType": "date"},
				"resolved_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

// scopedSchema covers workspace-scoped content; every listed field must be
// a non-blank string.
func scopedSchema(fields ...string) bson.M {
	required := bson.A{"workspace_id", "created_by"}
	props := bson.M{
		"workspace_id": bson.M{"bsonType": "objectId"},
		"created_by":   nonBlank,
	}
	for _, f := range fields {
		required = append(required, f)
		props[f] = nonBlank
	}
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType":   "object",
			"required":   required,
			"properties": props,
		},
	}
}

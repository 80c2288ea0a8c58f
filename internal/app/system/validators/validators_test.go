package validators_test

import (
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/validators"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("first EnsureAll failed: %v", err)
	}
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("second EnsureAll failed: %v", err)
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}
	have := map[string]bool{}
	for _, n := range names {
		have[n] = true
	}
	for _, want := range []string{"users", "workspaces", "workspace_members", "user_workspaces", "invitations", "tasks", "notes", "categories"} {
		if !have[want] {
			t.Errorf("collection %q not created", want)
		}
	}
}

func TestMembershipsValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	coll := db.Collection("workspace_members")

	_, err := coll.InsertOne(ctx, bson.M{
		"workspace_id": primitive.NewObjectID(),
		"user_id":      "u1",
		"role":         "member",
		"status":       "active",
		"joined_at":    time.Now(),
	})
	if err != nil {
		t.Errorf("valid membership rejected: %v", err)
	}

	_, err = coll.InsertOne(ctx, bson.M{
		"workspace_id": primitive.NewObjectID(),
		"user_id":      "u2",
		"role":         "superuser",
		"status":       "active",
		"joined_at":    time.Now(),
	})
	if err == nil {
		t.Error("expected validation error for unknown role")
	}
}

func TestInvitationsValidator_RejectsOwnerRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	now := time.Now()
	doc := bson.M{
		"target_key":    "personal",
		"invited_by":    "alice",
		"invited_email": "bob@example.com",
		"role":          "owner",
		"token":         "tok",
		"status":        "pending",
		"created_at":    now,
		"expires_at":    now.Add(time.Hour),
	}
	if _, err := db.Collection("invitations").InsertOne(ctx, doc); err == nil {
		t.Error("expected validation error for owner role on an invitation")
	}
}

func TestScopedValidator_RequiresWorkspace(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	if _, err := db.Collection("tasks").InsertOne(ctx, bson.M{"title": "x", "created_by": "u1"}); err == nil {
		t.Error("expected validation error for task without workspace_id")
	}
	if _, err := db.Collection("categories").InsertOne(ctx, bson.M{
		"workspace_id": primitive.NewObjectID(),
		"created_by":   "u1",
		"name":         "To Do",
		"key":          "todo",
	}); err != nil {
		t.Errorf("valid category rejected: %v", err)
	}
}

package workspacestore_test

import (
	"errors"
	"testing"

	workspacestore "github.com/dalemusser/taskhub/internal/app/store/workspaces"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := workspacestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Workspace{Name: "Team Alpha", OwnerID: "u1"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.NameCI == "" {
		t.Error("expected NameCI to be set")
	}
	if created.Status != models.WorkspaceActive {
		t.Errorf("expected status 'active', got %q", created.Status)
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestStore_Create_SecondPersonalWorkspace(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := workspacestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Workspace{Name: "Personal", OwnerID: "u1", Personal: true}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := store.Create(ctx, models.Workspace{Name: "Personal again", OwnerID: "u1", Personal: true})
	if !errors.Is(err, workspacestore.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	// Shared workspaces for the same owner are unrestricted.
	for i := 0; i < 2; i++ {
		if _, err := store.Create(ctx, models.Workspace{Name: "Shared", OwnerID: "u1"}); err != nil {
			t.Fatalf("shared Create %d failed: %v", i, err)
		}
	}
}

func TestStore_MarkDeletingHidesWorkspace(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := workspacestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ws, err := store.Create(ctx, models.Workspace{Name: "Doomed", OwnerID: "u1"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.MarkDeleting(ctx, ws.ID); err != nil {
		t.Fatalf("MarkDeleting failed: %v", err)
	}
	if _, err := store.GetByID(ctx, ws.ID); !errors.Is(err, workspacestore.ErrNotFound) {
		t.Errorf("expected ErrNotFound for deleting workspace, got %v", err)
	}
	if err := store.MarkDeleting(ctx, ws.ID); !errors.Is(err, workspacestore.ErrNotFound) {
		t.Errorf("expected second MarkDeleting to report ErrNotFound, got %v", err)
	}

	pending, err := store.ListDeleting(ctx)
	if err != nil {
		t.Fatalf("ListDeleting failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != ws.ID {
		t.Errorf("expected deleting workspace listed, got %+v", pending)
	}

	exist, err := store.Existing(ctx, []primitive.ObjectID{ws.ID, primitive.NewObjectID()})
	if err != nil {
		t.Fatalf("Existing failed: %v", err)
	}
	if !exist[ws.ID] || len(exist) != 1 {
		t.Errorf("unexpected Existing result: %v", exist)
	}
}

func TestStore_Update(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := workspacestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ws, err := store.Create(ctx, models.Workspace{Name: "Old", OwnerID: "u1", Settings: models.DefaultWorkspaceSettings()})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	name := "New"
	settings := ws.Settings
	settings.AllowMemberInvite = true
	updated, err := store.Update(ctx, ws.ID, workspacestore.Patch{Name: &name, Settings: &settings})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Name != "New" || !updated.Settings.AllowMemberInvite {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.Description != ws.Description {
		t.Error("expected untouched fields to be preserved")
	}
}

package userworkspacestore_test

import (
	"errors"
	"testing"
	"time"

	userworkspacestore "github.com/dalemusser/taskhub/internal/app/store/userworkspaces"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_ListByUserOrdersByLastAccessed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userworkspacestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now().UTC().Truncate(time.Millisecond)
	older, newer := primitive.NewObjectID(), primitive.NewObjectID()
	if _, err := store.Put(ctx, models.UserWorkspace{UserID: "u1", WorkspaceID: older, Role: models.RoleMember, LastAccessed: base}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := store.Put(ctx, models.UserWorkspace{UserID: "u1", WorkspaceID: newer, Role: models.RoleOwner, LastAccessed: base.Add(time.Minute)}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	list, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(list) != 2 || list[0].WorkspaceID != newer {
		t.Fatalf("expected newest first, got %+v", list)
	}

	if err := store.Touch(ctx, "u1", older, base.Add(2*time.Minute)); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	list, _ = store.ListByUser(ctx, "u1")
	if list[0].WorkspaceID != older {
		t.Errorf("expected touched workspace first, got %+v", list)
	}
}

func TestStore_PutReplacesAndDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userworkspacestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ws := primitive.NewObjectID()
	first, err := store.Put(ctx, models.UserWorkspace{UserID: "u1", WorkspaceID: ws, Role: models.RoleMember})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	second, err := store.Put(ctx, models.UserWorkspace{UserID: "u1", WorkspaceID: ws, Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	if second.ID != first.ID {
		t.Error("expected Put to keep the record id")
	}

	if err := store.Delete(ctx, "u1", ws); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "u1", ws); !errors.Is(err, userworkspacestore.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Touch(ctx, "u1", ws, time.Now()); !errors.Is(err, userworkspacestore.ErrNotFound) {
		t.Errorf("expected Touch on missing association to report ErrNotFound, got %v", err)
	}
}

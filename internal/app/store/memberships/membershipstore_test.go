package membershipstore_test

import (
	"errors"
	"testing"
	"time"

	membershipstore "github.com/dalemusser/taskhub/internal/app/store/memberships"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_InsertDuplicatePair(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ws := primitive.NewObjectID()
	if _, err := store.Insert(ctx, models.Membership{WorkspaceID: ws, UserID: "u1", Role: models.RoleMember, Status: models.MemberActive}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	_, err := store.Insert(ctx, models.Membership{WorkspaceID: ws, UserID: "u1", Role: models.RoleAdmin, Status: models.MemberActive})
	if !errors.Is(err, membershipstore.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestStore_SecondActiveOwnerRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ws := primitive.NewObjectID()
	if _, err := store.Insert(ctx, models.Membership{WorkspaceID: ws, UserID: "u1", Role: models.RoleOwner, Status: models.MemberActive}); err != nil {
		t.Fatalf("Insert owner failed: %v", err)
	}
	_, err := store.Insert(ctx, models.Membership{WorkspaceID: ws, UserID: "u2", Role: models.RoleOwner, Status: models.MemberActive})
	if !errors.Is(err, membershipstore.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for second owner, got %v", err)
	}
}

func TestStore_OwnerCannotBeRemovedOrReroled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ws := primitive.NewObjectID()
	owner, err := store.Insert(ctx, models.Membership{WorkspaceID: ws, UserID: "u1", Role: models.RoleOwner, Status: models.MemberActive})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.SetRole(ctx, owner.ID, models.RoleMember); !errors.Is(err, membershipstore.ErrNotFound) {
		t.Errorf("expected SetRole on owner to match nothing, got %v", err)
	}
	if err := store.MarkRemoved(ctx, owner.ID, "u2", time.Now().UTC()); !errors.Is(err, membershipstore.ErrNotFound) {
		t.Errorf("expected MarkRemoved on owner to match nothing, got %v", err)
	}
}

func TestStore_MarkRemovedAndListActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := membershipstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ws := primitive.NewObjectID()
	if _, err := store.Insert(ctx, models.Membership{WorkspaceID: ws, UserID: "owner", Role: models.RoleOwner, Status: models.MemberActive}); err != nil {
		t.Fatalf("Insert owner failed: %v", err)
	}
	m, err := store.Insert(ctx, models.Membership{WorkspaceID: ws, UserID: "u2", Role: models.RoleMember, Status: models.MemberActive})
	if err != nil {
		t.Fatalf("Insert member failed: %v", err)
	}
	if err := store.MarkRemoved(ctx, m.ID, "owner", time.Now().UTC()); err != nil {
		t.Fatalf("MarkRemoved failed: %v", err)
	}

	active, err := store.ListActive(ctx, ws)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 1 || active[0].UserID != "owner" {
		t.Errorf("expected only the owner active, got %+v", active)
	}

	got, err := store.Get(ctx, ws, "u2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.MemberRemoved || got.RemovedBy != "owner" || got.RemovedAt == nil {
		t.Errorf("removal fields not recorded: %+v", got)
	}
}

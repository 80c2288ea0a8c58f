package memstore_test

import (
	"context"
	"testing"
	"time"

	invitationstore "github.com/dalemusser/taskhub/internal/app/store/invitations"
	membershipstore "github.com/dalemusser/taskhub/internal/app/store/memberships"
	"github.com/dalemusser/taskhub/internal/app/store/memstore"
	workspacestore "github.com/dalemusser/taskhub/internal/app/store/workspaces"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMemberships_OwnerAndPairConstraints(t *testing.T) {
	ctx := context.Background()
	ms := memstore.New().Memberships()
	ws := primitive.NewObjectID()

	owner, err := ms.Insert(ctx, models.Membership{WorkspaceID: ws, UserID: "a", Role: models.RoleOwner, Status: models.MemberActive})
	require.NoError(t, err)

	_, err = ms.Insert(ctx, models.Membership{WorkspaceID: ws, UserID: "a", Role: models.RoleMember, Status: models.MemberActive})
	assert.ErrorIs(t, err, membershipstore.ErrDuplicate)

	_, err = ms.Insert(ctx, models.Membership{WorkspaceID: ws, UserID: "b", Role: models.RoleOwner, Status: models.MemberActive})
	assert.ErrorIs(t, err, membershipstore.ErrDuplicate)

	assert.ErrorIs(t, ms.MarkRemoved(ctx, owner.ID, "x", time.Now()), membershipstore.ErrNotFound)
	assert.ErrorIs(t, ms.SetRole(ctx, owner.ID, models.RoleMember), membershipstore.ErrNotFound)
}

func TestWorkspaces_DeletingIsHidden(t *testing.T) {
	ctx := context.Background()
	ws := memstore.New().Workspaces()

	w, err := ws.Create(ctx, models.Workspace{Name: "Team", OwnerID: "a"})
	require.NoError(t, err)
	require.NoError(t, ws.MarkDeleting(ctx, w.ID))

	_, err = ws.GetByID(ctx, w.ID)
	assert.ErrorIs(t, err, workspacestore.ErrNotFound)

	deleting, err := ws.ListDeleting(ctx)
	require.NoError(t, err)
	assert.Len(t, deleting, 1)

	exists, err := ws.Existing(ctx, []primitive.ObjectID{w.ID})
	require.NoError(t, err)
	assert.True(t, exists[w.ID])
}

func TestInvitations_PendingUniquenessAndOrdering(t *testing.T) {
	ctx := context.Background()
	db := memstore.New()
	inv := db.Invitations()
	now := time.Now().UTC()

	mk := func(from, token string, created time.Time) models.Invitation {
		return models.Invitation{
			InvitedBy: from, InvitedEmail: "bob@example.com", TargetKey: models.PersonalTarget,
			Token: token, CreatedAt: created, ExpiresAt: created.Add(time.Hour),
		}
	}
	first, err := inv.Create(ctx, mk("alice", "t1", now.Add(-2*time.Minute)))
	require.NoError(t, err)
	_, err = inv.Create(ctx, mk("alice", "t2", now))
	assert.ErrorIs(t, err, invitationstore.ErrDuplicatePending)
	second, err := inv.Create(ctx, mk("carol", "t3", now.Add(-time.Minute)))
	require.NoError(t, err)

	list, err := inv.ListPendingForInvitee(ctx, "bob@example.com", now, true)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	db.DropOrderedIndex()
	_, err = inv.ListPendingForInvitee(ctx, "bob@example.com", now, true)
	assert.ErrorIs(t, err, invitationstore.ErrIndexUnavailable)

	_, err = inv.Resolve(ctx, first.ID, models.InviteAccepted, now, "bob")
	require.NoError(t, err)
	_, err = inv.Resolve(ctx, first.ID, models.InviteRejected, now, "bob")
	assert.ErrorIs(t, err, invitationstore.ErrNotPending)
}

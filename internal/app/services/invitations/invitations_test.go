package invitations_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/services/invitations"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func setup(t *testing.T) (*testutil.Env, models.User, models.User, models.Workspace) {
	t.Helper()
	env := testutil.NewEnv(t)
	alice := env.User(t, "alice", "Alice")
	bob := env.User(t, "bob", "Bob")
	ws, err := env.Workspaces.Create(context.Background(), alice, "Team X", "")
	require.NoError(t, err)
	return env, alice, bob, ws
}

func sendTo(t *testing.T, env *testutil.Env, from models.User, target string, wsID *primitive.ObjectID, role string) models.Invitation {
	t.Helper()
	inv, err := env.Invitations.Send(context.Background(), invitations.SendInput{
		InviterID:   from.ID,
		Target:      target,
		WorkspaceID: wsID,
		Role:        role,
	})
	require.NoError(t, err)
	return inv
}

func TestInviteAcceptJoinsWorkspace(t *testing.T) {
	env, alice, _, ws := setup(t)
	ctx := context.Background()

	inv := sendTo(t, env, alice, "U2@Example.com", &ws.ID, "member")
	assert.Equal(t, "u2@example.com", inv.InvitedEmail)
	assert.Equal(t, models.InvitePending, inv.Status)
	assert.Equal(t, "Team X", inv.WorkspaceName)

	u2 := env.User(t, "u2", "User Two")
	pending, err := env.Invitations.ListPendingFor(ctx, u2.ID, "")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, inv.ID, pending[0].ID)

	joined, err := env.Invitations.Accept(ctx, inv.ID, u2.ID)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, joined)

	list, err := env.Members.ListWorkspacesForUser(ctx, u2.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Team X", list[0].Workspace.Name)
	assert.Equal(t, models.RoleMember, list[0].Role)

	role, err := env.Members.GetRole(ctx, u2.ID, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, role)

	got, err := env.DB.Invitations().GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteAccepted, got.Status, "resolved invitations are kept")
	assert.Equal(t, u2.ID, got.ResolvedBy)

	pending, err = env.Invitations.ListPendingFor(ctx, u2.ID, "")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSend_DuplicatePendingIsConflict(t *testing.T) {
	env, alice, _, ws := setup(t)
	ctx := context.Background()

	sendTo(t, env, alice, "u2@example.com", &ws.ID, "member")
	_, err := env.Invitations.Send(ctx, invitations.SendInput{
		InviterID: alice.ID, Target: "u2@example.com", WorkspaceID: &ws.ID, Role: "member",
	})
	assert.True(t, apperr.IsConflict(err), "got %v", err)

	all, err := env.Invitations.ListForWorkspace(ctx, alice.ID, ws.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSend_ReplacesPastDuePending(t *testing.T) {
	env, alice, bob, ws := setup(t)
	ctx := context.Background()
	clock := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	env.SetClock(func() time.Time { return clock })

	old := sendTo(t, env, alice, bob.Email, &ws.ID, "member")
	direct := sendTo(t, env, alice, bob.ID, nil, "")
	clock = clock.Add(invitations.DefaultTTL + time.Minute)

	pending, err := env.Invitations.ListPendingFor(ctx, bob.ID, "")
	require.NoError(t, err)
	assert.Empty(t, pending)

	fresh := sendTo(t, env, alice, bob.Email, &ws.ID, "member")
	assert.NotEqual(t, old.ID, fresh.ID)
	sendTo(t, env, alice, bob.ID, nil, "")

	got, err := env.DB.Invitations().GetByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteExpired, got.Status)
	got, err = env.DB.Invitations().GetByID(ctx, direct.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteExpired, got.Status)

	pending, err = env.Invitations.ListPendingFor(ctx, bob.ID, "")
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestSend_Validation(t *testing.T) {
	env, alice, bob, ws := setup(t)
	ctx := context.Background()
	personal, err := env.Workspaces.EnsurePersonal(ctx, alice)
	require.NoError(t, err)

	cases := []struct {
		name string
		in   invitations.SendInput
		is   func(error) bool
	}{
		{"self by email", invitations.SendInput{InviterID: alice.ID, Target: "ALICE@example.com", WorkspaceID: &ws.ID},
			func(err error) bool { return errors.Is(err, apperr.ErrInvalidArgument) }},
		{"self by id", invitations.SendInput{InviterID: alice.ID, Target: alice.ID},
			func(err error) bool { return errors.Is(err, apperr.ErrInvalidArgument) }},
		{"bad email", invitations.SendInput{InviterID: alice.ID, Target: "two@@example.com", WorkspaceID: &ws.ID},
			func(err error) bool { return errors.Is(err, apperr.ErrInvalidArgument) }},
		{"owner role", invitations.SendInput{InviterID: alice.ID, Target: bob.Email, WorkspaceID: &ws.ID, Role: "owner"},
			func(err error) bool { return errors.Is(err, apperr.ErrInvalidArgument) }},
		{"personal workspace", invitations.SendInput{InviterID: alice.ID, Target: bob.Email, WorkspaceID: &personal.ID},
			func(err error) bool { return errors.Is(err, apperr.ErrInvalidArgument) }},
		{"non-member inviter", invitations.SendInput{InviterID: bob.ID, Target: "x@example.com", WorkspaceID: &ws.ID},
			apperr.IsForbidden},
		{"direct to unknown address", invitations.SendInput{InviterID: alice.ID, Target: "nobody@example.com"},
			apperr.IsNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Invitations.Send(ctx, tc.in)
			require.Error(t, err)
			assert.True(t, tc.is(err), "unexpected error %v", err)
		})
	}
}

func TestSend_ExistingMemberIsConflict(t *testing.T) {
	env, alice, bob, ws := setup(t)
	env.Join(t, ws.ID, alice, bob, models.RoleMember)

	_, err := env.Invitations.Send(context.Background(), invitations.SendInput{
		InviterID: alice.ID, Target: bob.Email, WorkspaceID: &ws.ID,
	})
	assert.True(t, apperr.IsConflict(err), "got %v", err)
}

func TestAccept_ExpiredCreatesNoMembership(t *testing.T) {
	env, alice, bob, ws := setup(t)
	ctx := context.Background()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.SetClock(func() time.Time { return clock })

	inv := sendTo(t, env, alice, bob.Email, &ws.ID, "")
	clock = clock.Add(invitations.DefaultTTL + time.Second)

	_, err := env.Invitations.Accept(ctx, inv.ID, bob.ID)
	assert.True(t, apperr.IsExpired(err), "got %v", err)

	_, err = env.DB.Memberships().Get(ctx, ws.ID, bob.ID)
	assert.Error(t, err, "no membership for an expired invitation")

	got, err := env.DB.Invitations().GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteExpired, got.Status)

	assert.True(t, apperr.IsExpired(env.Invitations.Reject(ctx, inv.ID, bob.ID)))
}

func TestResolveTwiceIsConflict(t *testing.T) {
	env, alice, bob, ws := setup(t)
	ctx := context.Background()

	inv := sendTo(t, env, alice, bob.Email, &ws.ID, "member")
	_, err := env.Invitations.Accept(ctx, inv.ID, bob.ID)
	require.NoError(t, err)

	assert.True(t, apperr.IsConflict(env.Invitations.Reject(ctx, inv.ID, bob.ID)))
	_, err = env.Invitations.Accept(ctx, inv.ID, bob.ID)
	assert.True(t, apperr.IsConflict(err))
}

func TestReject_LeavesNoMembership(t *testing.T) {
	env, alice, bob, ws := setup(t)
	ctx := context.Background()

	inv := sendTo(t, env, alice, bob.Email, &ws.ID, "member")
	require.NoError(t, env.Invitations.Reject(ctx, inv.ID, bob.ID))

	ok, err := env.Members.IsMember(ctx, bob.ID, ws.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := env.DB.Invitations().GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteRejected, got.Status)

	// A fresh invitation can follow a resolved one.
	sendTo(t, env, alice, bob.Email, &ws.ID, "member")
}

func TestAccept_WrongAddresseeForbidden(t *testing.T) {
	env, alice, bob, ws := setup(t)
	carol := env.User(t, "carol", "Carol")

	inv := sendTo(t, env, alice, bob.Email, &ws.ID, "member")
	_, err := env.Invitations.Accept(context.Background(), inv.ID, carol.ID)
	assert.True(t, apperr.IsForbidden(err))
}

func TestAcceptByToken(t *testing.T) {
	env, alice, bob, ws := setup(t)
	inv := sendTo(t, env, alice, bob.Email, &ws.ID, "admin")

	assert.Equal(t, "http://localhost:8080/login/google?invite="+inv.Token, env.Invitations.Link(inv))

	joined, err := env.Invitations.AcceptByToken(context.Background(), inv.Token, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, joined)

	role, err := env.Members.GetRole(context.Background(), bob.ID, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)

	_, err = env.Invitations.AcceptByToken(context.Background(), "nope", bob.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestAccept_ReactivatesRemovedMember(t *testing.T) {
	env, alice, bob, ws := setup(t)
	ctx := context.Background()
	m := env.Join(t, ws.ID, alice, bob, models.RoleMember)
	require.NoError(t, env.Members.RemoveMember(ctx, alice.ID, m.ID))

	back := env.Join(t, ws.ID, alice, bob, models.RoleAdmin)
	assert.Equal(t, m.ID, back.ID, "the same record is reused")
	assert.True(t, back.IsActive())
	assert.Equal(t, models.RoleAdmin, back.Role)
	assert.Empty(t, back.RemovedBy)
}

func TestDirectInviteCreatesPairWorkspace(t *testing.T) {
	env, alice, bob, _ := setup(t)
	ctx := context.Background()

	inv := sendTo(t, env, alice, bob.ID, nil, "")
	assert.True(t, inv.IsDirect())
	assert.Equal(t, models.PersonalTarget, inv.TargetKey)

	wsID, err := env.Invitations.Accept(ctx, inv.ID, bob.ID)
	require.NoError(t, err)

	ws, role, err := env.Workspaces.Get(ctx, bob.ID, wsID)
	require.NoError(t, err)
	assert.Equal(t, "Alice & Bob", ws.Name)
	assert.Equal(t, models.RoleMember, role)
	assert.Equal(t, alice.ID, ws.OwnerID)

	// A second direct invitation in the other direction lands in the same
	// workspace.
	back := sendTo(t, env, bob, alice.Email, nil, "")
	again, err := env.Invitations.Accept(ctx, back.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, wsID, again)
}

func TestDirectInvite_RestoresInviterWhoLeft(t *testing.T) {
	env, alice, bob, _ := setup(t)
	ctx := context.Background()

	first := sendTo(t, env, bob, alice.Email, nil, "")
	wsID, err := env.Invitations.Accept(ctx, first.ID, alice.ID)
	require.NoError(t, err)
	require.NoError(t, env.Members.LeaveWorkspace(ctx, alice.ID, wsID))

	role, err := env.Members.GetRole(ctx, alice.ID, wsID)
	require.NoError(t, err)
	require.Empty(t, role)

	back := sendTo(t, env, alice, bob.ID, nil, "")
	again, err := env.Invitations.Accept(ctx, back.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, wsID, again)

	role, err = env.Members.GetRole(ctx, alice.ID, wsID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, role)
	role, err = env.Members.GetRole(ctx, bob.ID, wsID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, role)

	list, err := env.Members.ListWorkspacesForUser(ctx, alice.ID)
	require.NoError(t, err)
	var found bool
	for _, e := range list {
		if e.Workspace.ID == wsID {
			found = true
		}
	}
	assert.True(t, found, "the pair workspace is listed for the inviter again")
}

// failingResolve makes the final accept step fail.
type failingResolve struct {
	invitations.InvitationStore
}

func (f failingResolve) Resolve(ctx context.Context, id primitive.ObjectID, status string, at time.Time, by string) (models.Invitation, error) {
	if status == models.InviteAccepted {
		return models.Invitation{}, errors.New("write failed")
	}
	return f.InvitationStore.Resolve(ctx, id, status, at, by)
}

func TestAccept_RollsBackWhenResolveFails(t *testing.T) {
	env, alice, bob, _ := setup(t)
	ctx := context.Background()
	db := env.DB

	svc := invitations.New(invitations.Stores{
		Users:       db.Users(),
		Workspaces:  db.Workspaces(),
		Members:     db.Memberships(),
		Assoc:       db.UserWorkspaces(),
		Invitations: failingResolve{db.Invitations()},
	}, env.Workspaces, txn.Direct{}, env.Hub, nil, nil, env.Log, invitations.Config{})

	inv := sendTo(t, env, alice, bob.Email, nil, "")
	_, err := svc.Accept(ctx, inv.ID, bob.ID)
	require.Error(t, err)
	assert.Equal(t, "resolve invitation", apperr.StepOf(err))

	_, err = db.Workspaces().GetByPairKey(ctx, "shared_alice_bob")
	assert.Error(t, err, "the pair workspace is discarded")

	list, err := env.Members.ListWorkspacesForUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := db.Invitations().GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitePending, got.Status)
}

func TestListPendingFor_OrderedFallback(t *testing.T) {
	env, alice, bob, ws := setup(t)
	ctx := context.Background()
	carol := env.User(t, "carol", "Carol")
	other, err := env.Workspaces.Create(ctx, bob, "Other", "")
	require.NoError(t, err)

	clock := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	env.SetClock(func() time.Time { return clock })
	older := sendTo(t, env, alice, carol.Email, &ws.ID, "")
	clock = clock.Add(time.Hour)
	newer := sendTo(t, env, bob, carol.Email, &other.ID, "")

	env.DB.DropOrderedIndex()
	got, err := env.Invitations.ListPendingFor(ctx, carol.ID, "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)
}

func TestExpireDue(t *testing.T) {
	env, alice, bob, ws := setup(t)
	ctx := context.Background()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.SetClock(func() time.Time { return clock })

	inv := sendTo(t, env, alice, bob.Email, &ws.ID, "")
	n, err := env.Invitations.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock = clock.Add(invitations.DefaultTTL)
	n, err = env.Invitations.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := env.DB.Invitations().GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteExpired, got.Status)
}

func TestListForWorkspace_AdminsOnly(t *testing.T) {
	env, alice, bob, ws := setup(t)
	env.Join(t, ws.ID, alice, bob, models.RoleMember)

	_, err := env.Invitations.ListForWorkspace(context.Background(), bob.ID, ws.ID)
	assert.True(t, apperr.IsForbidden(err))
}

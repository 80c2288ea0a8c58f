package workers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/services/activectx"
	"github.com/dalemusser/taskhub/internal/app/services/invitations"
	sessionstore "github.com/dalemusser/taskhub/internal/app/store/sessions"
	"github.com/dalemusser/taskhub/internal/app/system/metrics"
	"github.com/dalemusser/taskhub/internal/app/system/workers"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeLedger struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeLedger) ExpireDue(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 2, f.err
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestInvitationExpiry_RunOnceRecordsOutcome(t *testing.T) {
	m := metrics.New("test")
	ledger := &fakeLedger{}
	w := workers.NewInvitationExpiry(ledger, m, zap.NewNop(), time.Hour)

	require.NoError(t, w.RunOnce(context.Background()))
	ledger.err = errors.New("store down")
	assert.Error(t, w.RunOnce(context.Background()))

	assert.Equal(t, 2, ledger.count())
	assert.Equal(t, 1.0, promtest.ToFloat64(m.WorkerRunsTotal.WithLabelValues("invitation_expiry", "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.WorkerRunsTotal.WithLabelValues("invitation_expiry", "error")))
}

func TestInvitationExpiry_StartStop(t *testing.T) {
	ledger := &fakeLedger{}
	w := workers.NewInvitationExpiry(ledger, nil, nil, 5*time.Millisecond)
	w.Start()
	require.Eventually(t, func() bool { return ledger.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	w.Stop()
	w.Stop()

	n := ledger.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, ledger.count(), "no runs after Stop")
}

func TestInvitationExpiry_ExpiresThroughLedger(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	alice := env.User(t, "alice", "Alice")
	ws, err := env.Workspaces.Create(ctx, alice, "Team", "")
	require.NoError(t, err)

	clock := time.Now().UTC()
	env.SetClock(func() time.Time { return clock })
	inv, err := env.Invitations.Send(ctx, invitationInput(alice.ID, ws.ID))
	require.NoError(t, err)

	clock = clock.Add(8 * 24 * time.Hour)
	w := workers.NewInvitationExpiry(env.Invitations, env.Metrics, env.Log, time.Hour)
	require.NoError(t, w.RunOnce(ctx))

	got, err := env.DB.Invitations().GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteExpired, got.Status)
}

func invitationInput(from string, wsID primitive.ObjectID) invitations.SendInput {
	return invitations.SendInput{InviterID: from, Target: "bob@example.com", WorkspaceID: &wsID}
}

type fakeSweeper struct {
	order []string
	err   error
}

func (f *fakeSweeper) FinishDeleting(context.Context) (int, error) {
	f.order = append(f.order, "finish")
	return 1, f.err
}

func (f *fakeSweeper) SweepOrphans(context.Context) (map[string]int64, error) {
	f.order = append(f.order, "sweep")
	return map[string]int64{"tasks": 3}, nil
}

func TestOrphanSweep_FinishesDeletionsFirst(t *testing.T) {
	s := &fakeSweeper{}
	w := workers.NewOrphanSweep(s, nil, zap.NewNop(), time.Hour)
	require.NoError(t, w.RunOnce(context.Background()))
	assert.Equal(t, []string{"finish", "sweep"}, s.order)

	s.order = nil
	s.err = errors.New("boom")
	assert.Error(t, w.RunOnce(context.Background()))
	assert.Equal(t, []string{"finish"}, s.order, "no sweep after a failed finish")
}

func TestSessionCleanup_ClosesLiveSessions(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	alice := env.User(t, "alice", "Alice")

	s, err := env.Contexts.Open(ctx, activectx.OpenInput{Token: "tok", User: alice})
	require.NoError(t, err)

	w := workers.NewSessionCleanup(env.DB.Sessions(), env.Contexts, env.Metrics, env.Log, time.Hour, -time.Minute)
	require.NoError(t, w.RunOnce(ctx))

	_, ok := env.Contexts.Get("tok")
	assert.False(t, ok)
	rec, err := env.DB.Sessions().GetByToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, sessionstore.EndInactive, rec.EndReason)

	require.Eventually(t, func() bool {
		_, open := <-s.Watch()
		return !open
	}, 2*time.Second, time.Millisecond)
}

type fakeStates struct{ n int64 }

func (f *fakeStates) CleanupExpired(context.Context) (int64, error) { return f.n, nil }

func TestOAuthStateCleanup_RunOnce(t *testing.T) {
	m := metrics.New("test")
	w := workers.NewOAuthStateCleanup(&fakeStates{n: 3}, m, zap.NewNop(), time.Hour)

	require.NoError(t, w.RunOnce(context.Background()))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.WorkerRunsTotal.WithLabelValues("oauth_state_cleanup", "ok")))
}

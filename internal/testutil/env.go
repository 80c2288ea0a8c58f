package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/services/activectx"
	"github.com/dalemusser/taskhub/internal/app/services/content"
	"github.com/dalemusser/taskhub/internal/app/services/invitations"
	"github.com/dalemusser/taskhub/internal/app/services/members"
	"github.com/dalemusser/taskhub/internal/app/services/workspaces"
	"github.com/dalemusser/taskhub/internal/app/store/memstore"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/metrics"
	"github.com/dalemusser/taskhub/internal/app/system/realtime"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Env is the full service graph over the in-memory backend.
type Env struct {
	DB      *memstore.DB
	Hub     *realtime.Hub
	Metrics *metrics.Metrics
	Audit   *auditlog.Logger
	Log     *zap.Logger

	Workspaces  *workspaces.Service
	Members     *members.Service
	Invitations *invitations.Service
	Content     *content.Service
	Contexts    *activectx.Manager
}

// NewEnv wires every service to a fresh memstore and hub. Sessions still
// open at the end of the test are shut down.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	log := zap.NewNop()
	db := memstore.New()
	hub := realtime.NewHub(log)
	m := metrics.New("taskhub")
	tx := txn.Direct{}
	audit := auditlog.New(db.Audit(), log, auditlog.Config{Auth: auditlog.DB, Workspace: auditlog.DB})

	e := &Env{DB: db, Hub: hub, Metrics: m, Audit: audit, Log: log}
	e.Workspaces = workspaces.New(workspaces.Stores{
		Workspaces:  db.Workspaces(),
		Members:     db.Memberships(),
		Assoc:       db.UserWorkspaces(),
		Invitations: db.Invitations(),
		Categories:  db.Categories(),
		Tasks:       db.Tasks(),
		Notes:       db.Notes(),
	}, tx, hub, audit, log)
	e.Members = members.New(db.Workspaces(), db.Memberships(), db.UserWorkspaces(), tx, hub, audit, m, log)
	e.Invitations = invitations.New(invitations.Stores{
		Users:       db.Users(),
		Workspaces:  db.Workspaces(),
		Members:     db.Memberships(),
		Assoc:       db.UserWorkspaces(),
		Invitations: db.Invitations(),
	}, e.Workspaces, tx, hub, audit, m, log, invitations.Config{BaseURL: "http://localhost:8080"})
	e.Content = content.New(db.Tasks(), db.Notes(), db.Categories(), e.Members, tx, hub, log)
	e.Contexts = activectx.NewManager(activectx.Deps{
		Workspaces:  e.Workspaces,
		Members:     e.Members,
		Content:     e.Content,
		Invitations: e.Invitations,
		Prefs:       db.Prefs(),
		Sessions:    db.Sessions(),
		Hub:         hub,
		Audit:       audit,
		Metrics:     m,
		Log:         log,
	})
	t.Cleanup(func() { e.Contexts.Shutdown(context.Background()) })
	return e
}

// SetClock points every service's time source at now.
func (e *Env) SetClock(now func() time.Time) {
	e.Workspaces.SetClock(now)
	e.Members.SetClock(now)
	e.Invitations.SetClock(now)
	e.Content.SetClock(now)
}

// User creates a profile for id with the display name name.
func (e *Env) User(t *testing.T, id, name string) models.User {
	t.Helper()
	return CreateUser(t, e.DB.Users(), id, name)
}

// Join brings invitee into wsID with role through the invitation flow.
func (e *Env) Join(t *testing.T, wsID primitive.ObjectID, inviter, invitee models.User, role models.Role) models.Membership {
	t.Helper()
	ctx := context.Background()
	inv, err := e.Invitations.Send(ctx, invitations.SendInput{
		InviterID:   inviter.ID,
		Target:      invitee.Email,
		WorkspaceID: &wsID,
		Role:        string(role),
	})
	if err != nil {
		t.Fatalf("send invitation to %s: %v", invitee.ID, err)
	}
	if _, err := e.Invitations.Accept(ctx, inv.ID, invitee.ID); err != nil {
		t.Fatalf("accept invitation as %s: %v", invitee.ID, err)
	}
	m, err := e.DB.Memberships().Get(ctx, wsID, invitee.ID)
	if err != nil {
		t.Fatalf("load membership of %s: %v", invitee.ID, err)
	}
	return m
}

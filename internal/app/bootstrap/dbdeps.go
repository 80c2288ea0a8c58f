// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	auditlogfeature "github.com/dalemusser/taskhub/internal/app/features/auditlog"
	"github.com/dalemusser/taskhub/internal/app/features/authgoogle"
	"github.com/dalemusser/taskhub/internal/app/features/login"
	"github.com/dalemusser/taskhub/internal/app/services/activectx"
	"github.com/dalemusser/taskhub/internal/app/services/content"
	"github.com/dalemusser/taskhub/internal/app/services/invitations"
	"github.com/dalemusser/taskhub/internal/app/services/members"
	"github.com/dalemusser/taskhub/internal/app/services/workspaces"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/taskhub/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
)

// The collection interfaces below are what the whole service graph needs
// from each collection; both the Mongo stores and memstore satisfy them.

type userStore interface {
	invitations.UserStore
	login.Profiles
}

type workspaceStore interface {
	workspaces.WorkspaceStore
	members.WorkspaceStore
	invitations.WorkspaceStore
}

type membershipStore interface {
	workspaces.MembershipStore
	members.MembershipStore
	invitations.MembershipStore
}

type associationStore interface {
	workspaces.AssociationStore
	members.AssociationStore
	invitations.AssociationStore
}

type invitationStore interface {
	workspaces.InvitationStore
	invitations.InvitationStore
}

type taskStore interface {
	content.TaskStore
	workspaces.ScopedStore
}

type noteStore interface {
	content.NoteStore
	workspaces.ScopedStore
}

type categoryStore interface {
	content.CategoryStore
	workspaces.CategoryStore
}

type auditStore interface {
	auditlog.Sink
	auditlogfeature.Events
}

type sessionLog interface {
	activectx.SessionLog
	workers.InactiveCloser
}

// Collections is one backend's set of stores.
type Collections struct {
	Users          userStore
	Workspaces     workspaceStore
	Memberships    membershipStore
	UserWorkspaces associationStore
	Invitations    invitationStore
	Tasks          taskStore
	Notes          noteStore
	Categories     categoryStore
	Prefs          activectx.Prefs
	Sessions       sessionLog
	Audit          auditStore

	// Mongo only; nil on the memory backend.
	OAuthStates authgoogle.StateStore
}

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	Backend string

	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Stores Collections
	Tx     txn.Runner
}

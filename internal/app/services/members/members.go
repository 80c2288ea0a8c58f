// Package members resolves who belongs to which workspace, and with what
// role, and applies the role-gated membership changes.
package members

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/taskhub/internal/app/policy/workspacepolicy"
	membershipstore "github.com/dalemusser/taskhub/internal/app/store/memberships"
	userworkspacestore "github.com/dalemusser/taskhub/internal/app/store/userworkspaces"
	workspacestore "github.com/dalemusser/taskhub/internal/app/store/workspaces"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/metrics"
	"github.com/dalemusser/taskhub/internal/app/system/realtime"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type WorkspaceStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Workspace, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Workspace, error)
}

type MembershipStore interface {
	Get(ctx context.Context, wsID primitive.ObjectID, userID string) (models.Membership, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Membership, error)
	ListActive(ctx context.Context, wsID primitive.ObjectID) ([]models.Membership, error)
	SetRole(ctx context.Context, id primitive.ObjectID, role models.Role) error
	MarkRemoved(ctx context.Context, id primitive.ObjectID, by string, at time.Time) error
	Replace(ctx context.Context, m models.Membership) error
}

type AssociationStore interface {
	Put(ctx context.Context, uw models.UserWorkspace) (models.UserWorkspace, error)
	Get(ctx context.Context, userID string, wsID primitive.ObjectID) (models.UserWorkspace, error)
	ListByUser(ctx context.Context, userID string) ([]models.UserWorkspace, error)
	Touch(ctx context.Context, userID string, wsID primitive.ObjectID, at time.Time) error
	SetRole(ctx context.Context, userID string, wsID primitive.ObjectID, role models.Role) error
	SetFavorite(ctx context.Context, userID string, wsID primitive.ObjectID, fav bool) error
	Delete(ctx context.Context, userID string, wsID primitive.ObjectID) error
}

var (
	_ WorkspaceStore   = (*workspacestore.Store)(nil)
	_ MembershipStore  = (*membershipstore.Store)(nil)
	_ AssociationStore = (*userworkspacestore.Store)(nil)
)

// Service is the membership resolver.
type Service struct {
	ws      WorkspaceStore
	members MembershipStore
	assoc   AssociationStore
	tx      txn.Runner
	pub     realtime.Publisher
	audit   *auditlog.Logger
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// New builds the resolver. audit and m may be nil.
func New(ws WorkspaceStore, members MembershipStore, assoc AssociationStore, tx txn.Runner,
	pub realtime.Publisher, audit *auditlog.Logger, m *metrics.Metrics, log *zap.Logger) *Service {
	if pub == nil {
		pub = realtime.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		ws: ws, members: members, assoc: assoc, tx: tx,
		pub: pub, audit: audit, metrics: m, log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Tests use it.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Entry is one of a user's workspaces.
type Entry struct {
	Workspace    models.Workspace `json:"workspace"`
	Role         models.Role      `json:"role"`
	IsFavorite   bool             `json:"is_favorite"`
	LastAccessed time.Time        `json:"last_accessed"`
}

// ListWorkspacesForUser returns the user's live workspaces, most recently
// accessed first.
func (s *Service) ListWorkspacesForUser(ctx context.Context, userID string) ([]Entry, error) {
	const op = "members.ListWorkspacesForUser"
	links, err := s.assoc.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	ids := make([]primitive.ObjectID, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.WorkspaceID)
	}
	wss, err := s.ws.GetByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	byID := make(map[primitive.ObjectID]models.Workspace, len(wss))
	for _, w := range wss {
		byID[w.ID] = w
	}

	out := make([]Entry, 0, len(links))
	for _, l := range links {
		w, ok := byID[l.WorkspaceID]
		if !ok {
			continue
		}
		out = append(out, Entry{Workspace: w, Role: l.Role, IsFavorite: l.IsFavorite, LastAccessed: l.LastAccessed})
	}
	return out, nil
}

// GetRole returns the user's active role in wsID, or "" when there is
// none. A missing or deleting workspace yields "".
func (s *Service) GetRole(ctx context.Context, userID string, wsID primitive.ObjectID) (models.Role, error) {
	const op = "members.GetRole"
	if _, err := s.ws.GetByID(ctx, wsID); err != nil {
		if errors.Is(err, workspacestore.ErrNotFound) {
			return "", nil
		}
		return "", apperr.FromStore(op, err)
	}
	m, err := s.members.Get(ctx, wsID, userID)
	if err != nil {
		if errors.Is(err, membershipstore.ErrNotFound) {
			return "", nil
		}
		return "", apperr.FromStore(op, err)
	}
	if !m.IsActive() {
		return "", nil
	}
	return m.Role, nil
}

// IsMember reports whether the user is an active member of wsID.
func (s *Service) IsMember(ctx context.Context, userID string, wsID primitive.ObjectID) (bool, error) {
	r, err := s.GetRole(ctx, userID, wsID)
	return r != "", err
}

// ListMembers returns the active members of wsID. The caller must be one.
func (s *Service) ListMembers(ctx context.Context, callerID string, wsID primitive.ObjectID) ([]models.Membership, error) {
	const op = "members.ListMembers"
	if _, err := s.callerRole(ctx, op, callerID, wsID); err != nil {
		return nil, err
	}
	ms, err := s.members.ListActive(ctx, wsID)
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	return ms, nil
}

// callerRole returns the caller's role, refusing non-members.
func (s *Service) callerRole(ctx context.Context, op, callerID string, wsID primitive.ObjectID) (models.Role, error) {
	if _, err := s.ws.GetByID(ctx, wsID); err != nil {
		if errors.Is(err, workspacestore.ErrNotFound) {
			return "", apperr.Wrap(apperr.NotFound, op, err)
		}
		return "", apperr.FromStore(op, err)
	}
	r, err := s.GetRole(ctx, callerID, wsID)
	if err != nil {
		return "", err
	}
	if r == "" {
		return "", apperr.New(apperr.Forbidden, op, "not a member")
	}
	return r, nil
}

func (s *Service) target(ctx context.Context, op string, memberID primitive.ObjectID) (models.Membership, error) {
	m, err := s.members.GetByID(ctx, memberID)
	if errors.Is(err, membershipstore.ErrNotFound) || (err == nil && !m.IsActive()) {
		return models.Membership{}, apperr.New(apperr.NotFound, op, "membership not found")
	}
	if err != nil {
		return models.Membership{}, apperr.FromStore(op, err)
	}
	return m, nil
}

// SetRole changes a member's role. The caller must be owner or admin and
// the target must not be the owner.
func (s *Service) SetRole(ctx context.Context, callerID string, memberID primitive.ObjectID, next models.Role) (models.Membership, error) {
	const op = "members.SetRole"
	if next != models.RoleAdmin && next != models.RoleMember {
		return models.Membership{}, apperr.New(apperr.InvalidArgument, op, "role must be admin or member")
	}
	m, err := s.target(ctx, op, memberID)
	if err != nil {
		return models.Membership{}, err
	}
	caller, err := s.callerRole(ctx, op, callerID, m.WorkspaceID)
	if err != nil {
		return models.Membership{}, err
	}
	if !workspacepolicy.CanChangeRole(caller, m.Role, next) {
		return models.Membership{}, apperr.New(apperr.Forbidden, op, "not allowed to change this role")
	}
	if m.Role == next {
		return m, nil
	}
	prev := m.Role

	err = s.tx.Run(ctx, func(ctx context.Context) error {
		steps := txn.NewSteps(op, s.log)
		if err := steps.Do(ctx, "update membership role",
			func(ctx context.Context) error { return s.members.SetRole(ctx, m.ID, next) },
			func(ctx context.Context) error { return s.members.SetRole(ctx, m.ID, prev) },
		); err != nil {
			return err
		}
		return steps.Do(ctx, "mirror association role", func(ctx context.Context) error {
			err := s.assoc.SetRole(ctx, m.UserID, m.WorkspaceID, next)
			if errors.Is(err, userworkspacestore.ErrNotFound) {
				_, err = s.assoc.Put(ctx, models.UserWorkspace{UserID: m.UserID, WorkspaceID: m.WorkspaceID, Role: next, JoinedAt: m.JoinedAt})
			}
			return err
		}, nil)
	})
	if err != nil {
		return models.Membership{}, apperr.FromStore(op, err)
	}

	m.Role = next
	m.UpdatedAt = s.now()
	s.pub.Publish(realtime.MembershipEvent(realtime.Modified, m))
	s.audit.MemberRoleChanged(ctx, callerID, m, prev, next)
	s.metrics.MembershipChange("role_changed")
	return m, nil
}

// RemoveMember deactivates another member and deletes their association.
// The owner cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, callerID string, memberID primitive.ObjectID) error {
	const op = "members.RemoveMember"
	m, err := s.target(ctx, op, memberID)
	if err != nil {
		return err
	}
	caller, err := s.callerRole(ctx, op, callerID, m.WorkspaceID)
	if err != nil {
		return err
	}
	if !workspacepolicy.CanRemoveMember(caller, m.Role) {
		return apperr.New(apperr.Forbidden, op, "not allowed to remove this member")
	}
	removed, err := s.deactivate(ctx, op, m, callerID)
	if err != nil {
		return err
	}
	s.audit.MemberRemoved(ctx, callerID, removed)
	s.metrics.MembershipChange("removed")
	return nil
}

// LeaveWorkspace ends the user's own membership. The owner cannot leave.
func (s *Service) LeaveWorkspace(ctx context.Context, userID string, wsID primitive.ObjectID) error {
	const op = "members.LeaveWorkspace"
	if _, err := s.callerRole(ctx, op, userID, wsID); err != nil {
		return err
	}
	m, err := s.members.Get(ctx, wsID, userID)
	if err != nil {
		return apperr.FromStore(op, err)
	}
	if m.Role == models.RoleOwner {
		return apperr.New(apperr.Conflict, op, "the owner cannot leave; delete the workspace instead")
	}
	left, err := s.deactivate(ctx, op, m, userID)
	if err != nil {
		return err
	}
	s.audit.MemberLeft(ctx, left)
	s.metrics.MembershipChange("left")
	return nil
}

// deactivate marks m removed and deletes the association, restoring both
// if the second step fails.
func (s *Service) deactivate(ctx context.Context, op string, m models.Membership, by string) (models.Membership, error) {
	at := s.now()
	err := s.tx.Run(ctx, func(ctx context.Context) error {
		steps := txn.NewSteps(op, s.log)
		if err := steps.Do(ctx, "mark removed",
			func(ctx context.Context) error {
				err := s.members.MarkRemoved(ctx, m.ID, by, at)
				if errors.Is(err, membershipstore.ErrNotFound) {
					return apperr.Wrap(apperr.NotFound, op, err)
				}
				return err
			},
			func(ctx context.Context) error { return s.members.Replace(ctx, m) },
		); err != nil {
			return err
		}

		var prev *models.UserWorkspace
		return steps.Do(ctx, "delete association",
			func(ctx context.Context) error {
				if uw, err := s.assoc.Get(ctx, m.UserID, m.WorkspaceID); err == nil {
					prev = &uw
				}
				return s.assoc.Delete(ctx, m.UserID, m.WorkspaceID)
			},
			func(ctx context.Context) error {
				if prev == nil {
					return nil
				}
				_, err := s.assoc.Put(ctx, *prev)
				return err
			},
		)
	})
	if err != nil {
		return models.Membership{}, apperr.FromStore(op, err)
	}

	m.Status = models.MemberRemoved
	m.RemovedAt = &at
	m.RemovedBy = by
	m.UpdatedAt = at
	s.pub.Publish(realtime.MembershipEvent(realtime.Modified, m))
	s.log.Info("membership ended",
		zap.String("workspace_id", m.WorkspaceID.Hex()),
		zap.String("user_id", m.UserID),
		zap.String("by", by))
	return m, nil
}

// Touch records that the user just opened wsID.
func (s *Service) Touch(ctx context.Context, userID string, wsID primitive.ObjectID) error {
	const op = "members.Touch"
	err := s.assoc.Touch(ctx, userID, wsID, s.now())
	if errors.Is(err, userworkspacestore.ErrNotFound) {
		return apperr.Wrap(apperr.NotFound, op, err)
	}
	return apperr.FromStore(op, err)
}

// SetFavorite pins or unpins wsID in the user's list.
func (s *Service) SetFavorite(ctx context.Context, userID string, wsID primitive.ObjectID, fav bool) error {
	const op = "members.SetFavorite"
	err := s.assoc.SetFavorite(ctx, userID, wsID, fav)
	if errors.Is(err, userworkspacestore.ErrNotFound) {
		return apperr.Wrap(apperr.NotFound, op, err)
	}
	return apperr.FromStore(op, err)
}

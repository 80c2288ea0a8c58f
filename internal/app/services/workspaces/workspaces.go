// Package workspaces is the workspace registry: creation, settings and
// deletion of workspaces, including the personal workspace every user owns
// and the pair workspace two users share after a direct invitation.
package workspaces

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/taskhub/internal/app/policy/workspacepolicy"
	invitationstore "github.com/dalemusser/taskhub/internal/app/store/invitations"
	membershipstore "github.com/dalemusser/taskhub/internal/app/store/memberships"
	workspacestore "github.com/dalemusser/taskhub/internal/app/store/workspaces"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/dalemusser/taskhub/internal/app/system/realtime"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// PersonalName is the name given to every personal workspace.
const PersonalName = "Personal"

type WorkspaceStore interface {
	Create(ctx context.Context, ws models.Workspace) (models.Workspace, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Workspace, error)
	GetPersonal(ctx context.Context, ownerID string) (models.Workspace, error)
	GetByPairKey(ctx context.Context, key string) (models.Workspace, error)
	Update(ctx context.Context, id primitive.ObjectID, p workspacestore.Patch) (models.Workspace, error)
	MarkDeleting(ctx context.Context, id primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	ListDeleting(ctx context.Context) ([]models.Workspace, error)
	Existing(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error)
}

type MembershipStore interface {
	Insert(ctx context.Context, m models.Membership) (models.Membership, error)
	Get(ctx context.Context, wsID primitive.ObjectID, userID string) (models.Membership, error)
	ListActive(ctx context.Context, wsID primitive.ObjectID) ([]models.Membership, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByWorkspace(ctx context.Context, wsID primitive.ObjectID) (int64, error)
}

type AssociationStore interface {
	Put(ctx context.Context, uw models.UserWorkspace) (models.UserWorkspace, error)
	Delete(ctx context.Context, userID string, wsID primitive.ObjectID) error
	DeleteByWorkspace(ctx context.Context, wsID primitive.ObjectID) (int64, error)
}

type InvitationStore interface {
	ListByWorkspace(ctx context.Context, wsID primitive.ObjectID) ([]models.Invitation, error)
	DeleteByWorkspace(ctx context.Context, wsID primitive.ObjectID) (int64, error)
	DistinctWorkspaceIDs(ctx context.Context) ([]primitive.ObjectID, error)
}

// ScopedStore is a collection whose documents belong to one workspace.
type ScopedStore interface {
	DeleteByWorkspace(ctx context.Context, wsID primitive.ObjectID) (int64, error)
	DistinctWorkspaceIDs(ctx context.Context) ([]primitive.ObjectID, error)
}

type CategoryStore interface {
	ScopedStore
	CreateMany(ctx context.Context, cats []models.Category) ([]models.Category, error)
}

// Stores bundles the collections the registry touches.
type Stores struct {
	Workspaces  WorkspaceStore
	Members     MembershipStore
	Assoc       AssociationStore
	Invitations InvitationStore
	Categories  CategoryStore
	Tasks       ScopedStore
	Notes       ScopedStore
}

// Service is the workspace registry.
type Service struct {
	st    Stores
	tx    txn.Runner
	pub   realtime.Publisher
	audit *auditlog.Logger
	log   *zap.Logger
	now   func() time.Time
}

// New builds the registry. audit may be nil.
func New(st Stores, tx txn.Runner, pub realtime.Publisher, audit *auditlog.Logger, log *zap.Logger) *Service {
	if pub == nil {
		pub = realtime.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{st: st, tx: tx, pub: pub, audit: audit, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the time source. Tests use it.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Patch is a settings update; nil fields are left alone.
type Patch struct {
	Name        *string
	Description *string
	Settings    *models.WorkspaceSettings
}

func cleanName(op, name string) (string, error) {
	n := htmlsanitize.PlainText(name)
	if n == "" {
		return "", apperr.New(apperr.InvalidArgument, op, "name is required")
	}
	if !inputval.WithinLimit(n, inputval.MaxWorkspaceName) {
		return "", apperr.New(apperr.InvalidArgument, op, "name is too long")
	}
	return n, nil
}

func cleanDescription(op, d string) (string, error) {
	d = htmlsanitize.PlainText(d)
	if !inputval.WithinLimit(d, inputval.MaxDescription) {
		return "", apperr.New(apperr.InvalidArgument, op, "description is too long")
	}
	return d, nil
}

// PairKey is the key of the shared workspace of two users, independent of
// who invited whom.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return "shared_" + ids[0] + "_" + ids[1]
}

// Create makes a workspace owned by owner, with the owner's membership and
// association and the default categories.
func (s *Service) Create(ctx context.Context, owner models.User, name, description string) (models.Workspace, error) {
	const op = "workspaces.Create"
	n, err := cleanName(op, name)
	if err != nil {
		return models.Workspace{}, err
	}
	d, err := cleanDescription(op, description)
	if err != nil {
		return models.Workspace{}, err
	}
	return s.create(ctx, op, owner, models.Workspace{
		Name:        n,
		Description: d,
		OwnerID:     owner.ID,
		Settings:    models.DefaultWorkspaceSettings(),
	})
}

// created carries what a create wrote, for publishing after commit.
type created struct {
	ws    models.Workspace
	owner models.Membership
	cats  []models.Category
}

func (s *Service) create(ctx context.Context, op string, owner models.User, ws models.Workspace) (models.Workspace, error) {
	var out created
	err := s.tx.Run(ctx, func(ctx context.Context) error {
		steps := txn.NewSteps(op, s.log)
		out = created{}

		if err := steps.Do(ctx, "create workspace", func(ctx context.Context) error {
			w, err := s.st.Workspaces.Create(ctx, ws)
			if errors.Is(err, workspacestore.ErrDuplicate) {
				return apperr.Wrap(apperr.Conflict, op, err)
			}
			out.ws = w
			return err
		}, func(ctx context.Context) error {
			_, err := s.st.Workspaces.Delete(ctx, out.ws.ID)
			return err
		}); err != nil {
			return err
		}

		if err := steps.Do(ctx, "add owner", func(ctx context.Context) error {
			m, err := s.st.Members.Insert(ctx, models.Membership{
				WorkspaceID: out.ws.ID,
				UserID:      owner.ID,
				Email:       owner.Email,
				DisplayName: owner.DisplayName,
				PhotoURL:    owner.PhotoURL,
				Role:        models.RoleOwner,
				Status:      models.MemberActive,
				JoinedAt:    s.now(),
			})
			out.owner = m
			return err
		}, func(ctx context.Context) error {
			return s.st.Members.Delete(ctx, out.owner.ID)
		}); err != nil {
			return err
		}

		if err := steps.Do(ctx, "record association", func(ctx context.Context) error {
			now := s.now()
			_, err := s.st.Assoc.Put(ctx, models.UserWorkspace{
				UserID:       owner.ID,
				WorkspaceID:  out.ws.ID,
				Role:         models.RoleOwner,
				JoinedAt:     now,
				LastAccessed: now,
			})
			return err
		}, func(ctx context.Context) error {
			return s.st.Assoc.Delete(ctx, owner.ID, out.ws.ID)
		}); err != nil {
			return err
		}

		return steps.Do(ctx, "seed categories", func(ctx context.Context) error {
			cats, err := s.st.Categories.CreateMany(ctx, models.DefaultCategories(out.ws.ID, owner.ID))
			out.cats = cats
			return err
		}, nil)
	})
	if err != nil {
		return models.Workspace{}, apperr.FromStore(op, err)
	}

	events := []realtime.Event{
		realtime.WorkspaceEvent(realtime.Added, out.ws),
		realtime.MembershipEvent(realtime.Added, out.owner),
	}
	for _, c := range out.cats {
		events = append(events, realtime.CategoryEvent(realtime.Added, c))
	}
	s.pub.Publish(events...)
	s.audit.WorkspaceCreated(ctx, out.ws)
	s.log.Info("workspace created",
		zap.String("workspace_id", out.ws.ID.Hex()),
		zap.String("user_id", owner.ID),
		zap.Bool("personal", out.ws.Personal))
	return out.ws, nil
}

// EnsurePersonal returns the user's personal workspace, creating it on
// first use.
func (s *Service) EnsurePersonal(ctx context.Context, u models.User) (models.Workspace, error) {
	const op = "workspaces.EnsurePersonal"
	ws, err := s.st.Workspaces.GetPersonal(ctx, u.ID)
	if err == nil {
		return ws, nil
	}
	if !errors.Is(err, workspacestore.ErrNotFound) {
		return models.Workspace{}, apperr.FromStore(op, err)
	}
	ws, err = s.create(ctx, op, u, models.Workspace{
		Name:     PersonalName,
		OwnerID:  u.ID,
		Personal: true,
		Settings: models.DefaultWorkspaceSettings(),
	})
	if apperr.IsConflict(err) {
		// Another sign-in created it first.
		ws, err = s.st.Workspaces.GetPersonal(ctx, u.ID)
		return ws, apperr.FromStore(op, err)
	}
	return ws, err
}

// EnsurePair returns the shared workspace of inviter and invitee, creating
// it (owned by inviter) when it does not exist yet. created reports
// whether this call made it.
func (s *Service) EnsurePair(ctx context.Context, inviter, invitee models.User) (ws models.Workspace, created bool, err error) {
	const op = "workspaces.EnsurePair"
	key := PairKey(inviter.ID, invitee.ID)
	ws, err = s.st.Workspaces.GetByPairKey(ctx, key)
	if err == nil {
		return ws, false, nil
	}
	if !errors.Is(err, workspacestore.ErrNotFound) {
		return models.Workspace{}, false, apperr.FromStore(op, err)
	}
	ws, err = s.create(ctx, op, inviter, models.Workspace{
		Name:     pairName(inviter, invitee),
		OwnerID:  inviter.ID,
		PairKey:  key,
		Settings: models.DefaultWorkspaceSettings(),
	})
	if apperr.IsConflict(err) {
		ws, err = s.st.Workspaces.GetByPairKey(ctx, key)
		return ws, false, apperr.FromStore(op, err)
	}
	if err != nil {
		return models.Workspace{}, false, err
	}
	return ws, true, nil
}

func pairName(a, b models.User) string {
	name := func(u models.User) string {
		n := strings.TrimSpace(u.DisplayName)
		if n == "" {
			n = u.Email
		}
		return n
	}
	n := name(a) + " & " + name(b)
	if r := []rune(n); len(r) > inputval.MaxWorkspaceName {
		n = string(r[:inputval.MaxWorkspaceName])
	}
	return n
}

// Role returns the caller's active role in wsID, or "" when the caller is
// not an active member. A workspace being deleted is NotFound.
func (s *Service) Role(ctx context.Context, userID string, wsID primitive.ObjectID) (models.Workspace, models.Role, error) {
	const op = "workspaces.Role"
	ws, err := s.st.Workspaces.GetByID(ctx, wsID)
	if errors.Is(err, workspacestore.ErrNotFound) {
		return models.Workspace{}, "", apperr.Wrap(apperr.NotFound, op, err)
	}
	if err != nil {
		return models.Workspace{}, "", apperr.FromStore(op, err)
	}
	m, err := s.st.Members.Get(ctx, wsID, userID)
	if errors.Is(err, membershipstore.ErrNotFound) {
		return ws, "", nil
	}
	if err != nil {
		return models.Workspace{}, "", apperr.FromStore(op, err)
	}
	if !m.IsActive() {
		return ws, "", nil
	}
	return ws, m.Role, nil
}

// Get returns a workspace the caller is an active member of.
func (s *Service) Get(ctx context.Context, callerID string, wsID primitive.ObjectID) (models.Workspace, models.Role, error) {
	ws, role, err := s.Role(ctx, callerID, wsID)
	if err != nil {
		return models.Workspace{}, "", err
	}
	if role == "" {
		return models.Workspace{}, "", apperr.New(apperr.Forbidden, "workspaces.Get", "not a member")
	}
	return ws, role, nil
}

// UpdateSettings applies p. Owner or admin only.
func (s *Service) UpdateSettings(ctx context.Context, callerID string, wsID primitive.ObjectID, p Patch) (models.Workspace, error) {
	const op = "workspaces.UpdateSettings"
	_, role, err := s.Get(ctx, callerID, wsID)
	if err != nil {
		return models.Workspace{}, err
	}
	if !workspacepolicy.CanUpdateSettings(role) {
		return models.Workspace{}, apperr.New(apperr.Forbidden, op, "owner or admin only")
	}

	var sp workspacestore.Patch
	if p.Name != nil {
		n, err := cleanName(op, *p.Name)
		if err != nil {
			return models.Workspace{}, err
		}
		sp.Name = &n
	}
	if p.Description != nil {
		d, err := cleanDescription(op, *p.Description)
		if err != nil {
			return models.Workspace{}, err
		}
		sp.Description = &d
	}
	if p.Settings != nil {
		set := *p.Settings
		if set.DefaultMemberRole == "" {
			set.DefaultMemberRole = models.RoleMember
		}
		if set.DefaultMemberRole == models.RoleOwner || set.DefaultMemberRole.Level() == 0 {
			return models.Workspace{}, apperr.New(apperr.InvalidArgument, op, "invalid default member role")
		}
		sp.Settings = &set
	}

	ws, err := s.st.Workspaces.Update(ctx, wsID, sp)
	if errors.Is(err, workspacestore.ErrNotFound) {
		return models.Workspace{}, apperr.Wrap(apperr.NotFound, op, err)
	}
	if err != nil {
		return models.Workspace{}, apperr.FromStore(op, err)
	}
	s.pub.Publish(realtime.WorkspaceEvent(realtime.Modified, ws))
	s.audit.WorkspaceUpdated(ctx, callerID, ws)
	return ws, nil
}

// Delete removes a workspace and everything scoped to it. Owner only;
// personal workspaces cannot be deleted.
//
// The workspace is first marked deleting, which hides it from every
// reader. If the cascade then fails the error names the failed step and
// the orphan sweep finishes the job later.
func (s *Service) Delete(ctx context.Context, wsID primitive.ObjectID, callerID string) error {
	const op = "workspaces.Delete"
	ws, role, err := s.Get(ctx, callerID, wsID)
	if err != nil {
		return err
	}
	if !workspacepolicy.CanDeleteWorkspace(role) {
		return apperr.New(apperr.Forbidden, op, "owner only")
	}
	if ws.Personal {
		return apperr.New(apperr.Conflict, op, "personal workspace cannot be deleted")
	}

	if err := s.st.Workspaces.MarkDeleting(ctx, wsID); err != nil {
		if errors.Is(err, workspacestore.ErrNotFound) {
			return apperr.Wrap(apperr.NotFound, op, err)
		}
		return apperr.StepFailed(op, "mark deleting", apperr.FromStore(op, err), nil)
	}
	ws.Status = models.WorkspaceDeleting
	s.pub.Publish(realtime.WorkspaceEvent(realtime.Removed, ws))

	counts, err := s.Cascade(ctx, ws)
	if err != nil {
		s.log.Warn("workspace cascade incomplete; sweep will finish it",
			zap.String("workspace_id", wsID.Hex()), zap.Error(err))
		return err
	}
	s.audit.WorkspaceDeleted(ctx, callerID, wsID, counts)
	return nil
}

// Discard removes a workspace this process just created, skipping the
// permission checks. Rollbacks use it.
func (s *Service) Discard(ctx context.Context, wsID primitive.ObjectID) error {
	ws, err := s.st.Workspaces.GetByID(ctx, wsID)
	if errors.Is(err, workspacestore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.st.Workspaces.MarkDeleting(ctx, wsID); err != nil && !errors.Is(err, workspacestore.ErrNotFound) {
		return err
	}
	ws.Status = models.WorkspaceDeleting
	s.pub.Publish(realtime.WorkspaceEvent(realtime.Removed, ws))
	_, err = s.Cascade(ctx, ws)
	return err
}

// Cascade deletes everything scoped to ws, then ws itself, inside a
// transaction where the backend has one. It returns the number of
// documents removed per collection.
func (s *Service) Cascade(ctx context.Context, ws models.Workspace) (map[string]int64, error) {
	const op = "workspaces.Cascade"
	wsID := ws.ID

	// Collected before deleting so invitees' and members' listeners can be
	// told afterwards.
	members, err := s.st.Members.ListActive(ctx, wsID)
	if err != nil {
		return nil, apperr.StepFailed(op, "load members", apperr.FromStore(op, err), nil)
	}
	invites, err := s.st.Invitations.ListByWorkspace(ctx, wsID)
	if err != nil {
		return nil, apperr.StepFailed(op, "load invitations", apperr.FromStore(op, err), nil)
	}

	counts := make(map[string]int64)
	step := func(ctx context.Context, name, coll string, del func(ctx context.Context, id primitive.ObjectID) (int64, error)) error {
		n, err := del(ctx, wsID)
		if err != nil {
			return apperr.StepFailed(op, name, apperr.FromStore(op, err), nil)
		}
		counts[coll] = n
		return nil
	}

	err = s.tx.Run(ctx, func(ctx context.Context) error {
		clear(counts)
		for _, st := range []struct {
			name, coll string
			del        func(context.Context, primitive.ObjectID) (int64, error)
		}{
			{"delete memberships", realtime.Memberships, s.st.Members.DeleteByWorkspace},
			{"delete associations", "user_workspaces", s.st.Assoc.DeleteByWorkspace},
			{"delete invitations", realtime.Invitations, s.st.Invitations.DeleteByWorkspace},
			{"delete categories", realtime.Categories, s.st.Categories.DeleteByWorkspace},
			{"delete tasks", realtime.Tasks, s.st.Tasks.DeleteByWorkspace},
			{"delete notes", realtime.Notes, s.st.Notes.DeleteByWorkspace},
			{"delete workspace", realtime.Workspaces, s.st.Workspaces.Delete},
		} {
			if err := step(ctx, st.name, st.coll, st.del); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	events := make([]realtime.Event, 0, len(members)+len(invites))
	for _, m := range members {
		events = append(events, realtime.MembershipEvent(realtime.Removed, m))
	}
	for _, inv := range invites {
		if inv.Status == models.InvitePending {
			events = append(events, realtime.InvitationEvent(realtime.Removed, inv))
		}
	}
	s.pub.Publish(events...)

	s.log.Info("workspace deleted",
		zap.String("workspace_id", wsID.Hex()),
		zap.Any("removed", counts))
	return counts, nil
}

// FinishDeleting completes the cascade of every workspace still marked
// deleting. It returns how many were finished.
func (s *Service) FinishDeleting(ctx context.Context) (int, error) {
	pending, err := s.st.Workspaces.ListDeleting(ctx)
	if err != nil {
		return 0, apperr.FromStore("workspaces.FinishDeleting", err)
	}
	var errs []error
	done := 0
	for _, ws := range pending {
		if _, err := s.Cascade(ctx, ws); err != nil {
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

// SweepOrphans deletes scoped documents whose workspace record no longer
// exists. It returns the number removed per collection.
func (s *Service) SweepOrphans(ctx context.Context) (map[string]int64, error) {
	const op = "workspaces.SweepOrphans"
	counts := make(map[string]int64)
	var errs []error
	for _, c := range []struct {
		coll     string
		distinct func(context.Context) ([]primitive.ObjectID, error)
		del      func(context.Context, primitive.ObjectID) (int64, error)
	}{
		{realtime.Invitations, s.st.Invitations.DistinctWorkspaceIDs, s.st.Invitations.DeleteByWorkspace},
		{realtime.Categories, s.st.Categories.DistinctWorkspaceIDs, s.st.Categories.DeleteByWorkspace},
		{realtime.Tasks, s.st.Tasks.DistinctWorkspaceIDs, s.st.Tasks.DeleteByWorkspace},
		{realtime.Notes, s.st.Notes.DistinctWorkspaceIDs, s.st.Notes.DeleteByWorkspace},
	} {
		ids, err := c.distinct(ctx)
		if err != nil {
			errs = append(errs, apperr.FromStore(op, err))
			continue
		}
		exists, err := s.st.Workspaces.Existing(ctx, ids)
		if err != nil {
			errs = append(errs, apperr.FromStore(op, err))
			continue
		}
		for _, id := range ids {
			if exists[id] {
				continue
			}
			n, err := c.del(ctx, id)
			if err != nil {
				errs = append(errs, apperr.FromStore(op, err))
				continue
			}
			counts[c.coll] += n
		}
	}
	return counts, errors.Join(errs...)
}

// Compile-time checks that the Mongo stores satisfy the interfaces.
var (
	_ WorkspaceStore  = (*workspacestore.Store)(nil)
	_ MembershipStore = (*membershipstore.Store)(nil)
	_ InvitationStore = (*invitationstore.Store)(nil)
)

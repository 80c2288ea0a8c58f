// Package invitations is the invitation ledger. Every invitation is
// addressed to a folded email address; it is sent pending, and resolved
// exactly once as accepted, rejected or expired. Resolved invitations are
// kept as history.
package invitations

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/taskhub/internal/app/policy/workspacepolicy"
	invitationstore "github.com/dalemusser/taskhub/internal/app/store/invitations"
	membershipstore "github.com/dalemusser/taskhub/internal/app/store/memberships"
	userstore "github.com/dalemusser/taskhub/internal/app/store/users"
	userworkspacestore "github.com/dalemusser/taskhub/internal/app/store/userworkspaces"
	workspacestore "github.com/dalemusser/taskhub/internal/app/store/workspaces"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/dalemusser/taskhub/internal/app/system/metrics"
	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/app/system/realtime"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultTTL is how long an invitation stays open.
const DefaultTTL = 7 * 24 * time.Hour

type UserStore interface {
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
}

type WorkspaceStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Workspace, error)
}

type MembershipStore interface {
	Get(ctx context.Context, wsID primitive.ObjectID, userID string) (models.Membership, error)
	Insert(ctx context.Context, m models.Membership) (models.Membership, error)
	Replace(ctx context.Context, m models.Membership) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type AssociationStore interface {
	Get(ctx context.Context, userID string, wsID primitive.ObjectID) (models.UserWorkspace, error)
	Put(ctx context.Context, uw models.UserWorkspace) (models.UserWorkspace, error)
	Delete(ctx context.Context, userID string, wsID primitive.ObjectID) error
}

type InvitationStore interface {
	Create(ctx context.Context, inv models.Invitation) (models.Invitation, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Invitation, error)
	GetByToken(ctx context.Context, token string) (models.Invitation, error)
	ListPendingForInvitee(ctx context.Context, email string, now time.Time, ordered bool) ([]models.Invitation, error)
	ListByWorkspace(ctx context.Context, wsID primitive.ObjectID) ([]models.Invitation, error)
	ListByInviter(ctx context.Context, inviterID string) ([]models.Invitation, error)
	Resolve(ctx context.Context, id primitive.ObjectID, status string, at time.Time, by string) (models.Invitation, error)
	ExpireDue(ctx context.Context, now time.Time) ([]models.Invitation, error)
}

// Registry creates the shared workspace a direct invitation leads to.
type Registry interface {
	EnsurePair(ctx context.Context, inviter, invitee models.User) (models.Workspace, bool, error)
	Discard(ctx context.Context, wsID primitive.ObjectID) error
}

var (
	_ UserStore        = (*userstore.Store)(nil)
	_ WorkspaceStore   = (*workspacestore.Store)(nil)
	_ MembershipStore  = (*membershipstore.Store)(nil)
	_ AssociationStore = (*userworkspacestore.Store)(nil)
	_ InvitationStore  = (*invitationstore.Store)(nil)
)

// Stores bundles the collections the ledger reads and writes.
type Stores struct {
	Users       UserStore
	Workspaces  WorkspaceStore
	Members     MembershipStore
	Assoc       AssociationStore
	Invitations InvitationStore
}

// Config tunes the ledger.
type Config struct {
	TTL     time.Duration
	BaseURL string
}

// Service is the invitation ledger.
type Service struct {
	st       Stores
	registry Registry
	tx       txn.Runner
	pub      realtime.Publisher
	audit    *auditlog.Logger
	metrics  *metrics.Metrics
	log      *zap.Logger
	cfg      Config
	now      func() time.Time
}

// New builds the ledger. audit and m may be nil.
func New(st Stores, registry Registry, tx txn.Runner, pub realtime.Publisher,
	audit *auditlog.Logger, m *metrics.Metrics, log *zap.Logger, cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if pub == nil {
		pub = realtime.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		st: st, registry: registry, tx: tx, pub: pub,
		audit: audit, metrics: m, log: log, cfg: cfg,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Tests use it.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SendInput describes an invitation to send.
type SendInput struct {
	InviterID string
	// Target is an email address, or the id of a registered user.
	Target string
	// WorkspaceID is nil for a direct invitation, which leads to the pair
	// workspace of the two users.
	WorkspaceID *primitive.ObjectID
	Role        string
	Message     string
}

// Send records a pending invitation.
func (s *Service) Send(ctx context.Context, in SendInput) (models.Invitation, error) {
	const op = "invitations.Send"

	inviter, err := s.st.Users.GetByID(ctx, in.InviterID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return models.Invitation{}, apperr.New(apperr.Forbidden, op, "inviter has no profile")
		}
		return models.Invitation{}, apperr.FromStore(op, err)
	}

	email, invitee, err := s.resolveTarget(ctx, op, in.Target)
	if err != nil {
		return models.Invitation{}, err
	}
	if email == normalize.Email(inviter.Email) || (invitee != nil && invitee.ID == inviter.ID) {
		return models.Invitation{}, apperr.New(apperr.InvalidArgument, op, "cannot invite yourself")
	}

	msg := htmlsanitize.PlainText(in.Message)
	if !inputval.WithinLimit(msg, inputval.MaxMessage) {
		return models.Invitation{}, apperr.New(apperr.InvalidArgument, op, "message is too long")
	}

	now := s.now()
	inv := models.Invitation{
		InvitedBy:    inviter.ID,
		InviterName:  inviter.DisplayName,
		InviterEmail: inviter.Email,
		InviterPhoto: inviter.PhotoURL,
		InvitedEmail: email,
		Message:      msg,
		Token:        uuid.NewString(),
		Status:       models.InvitePending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.TTL),
	}
	if invitee != nil {
		inv.InviteeID = invitee.ID
	}

	if in.WorkspaceID == nil {
		if invitee == nil {
			return models.Invitation{}, apperr.New(apperr.NotFound, op, "no registered user with that address")
		}
		role, ok := models.ParseRole(in.Role)
		if in.Role == "" {
			role, ok = models.RoleMember, true
		}
		if !ok || !inputval.IsValidInviteRole(string(role)) {
			return models.Invitation{}, apperr.New(apperr.InvalidArgument, op, "role must be admin or member")
		}
		inv.Role = role
		inv.TargetKey = models.PersonalTarget
	} else {
		if err := s.checkWorkspaceInvite(ctx, op, &inv, *in.WorkspaceID, in.Role, invitee); err != nil {
			return models.Invitation{}, err
		}
	}

	created, err := s.st.Invitations.Create(ctx, inv)
	if errors.Is(err, invitationstore.ErrDuplicatePending) {
		// The slot may be held by an invitation that is past due but not
		// swept yet.
		if n, xerr := s.ExpireDue(ctx); xerr == nil && n > 0 {
			created, err = s.st.Invitations.Create(ctx, inv)
		}
	}
	if err != nil {
		if errors.Is(err, invitationstore.ErrDuplicatePending) {
			return models.Invitation{}, apperr.Wrap(apperr.Conflict, op, err)
		}
		return models.Invitation{}, apperr.FromStore(op, err)
	}
	inv = created

	s.pub.Publish(realtime.InvitationEvent(realtime.Added, inv))
	s.audit.InvitationSent(ctx, inv)
	s.metrics.Invitation("sent")
	s.log.Info("invitation sent",
		zap.String("invitation_id", inv.ID.Hex()),
		zap.String("user_id", inviter.ID),
		zap.String("target", inv.TargetKey))
	return inv, nil
}

// resolveTarget folds an email target, or looks up a user-id target. The
// invitee profile is returned when one exists.
func (s *Service) resolveTarget(ctx context.Context, op, target string) (string, *models.User, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", nil, apperr.New(apperr.InvalidArgument, op, "target is required")
	}

	if strings.Contains(target, "@") {
		email := normalize.Email(target)
		if !inputval.IsValidEmail(email) {
			return "", nil, apperr.New(apperr.InvalidArgument, op, "invalid email address")
		}
		u, err := s.st.Users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			return email, &u, nil
		case errors.Is(err, userstore.ErrNotFound):
			return email, nil, nil
		default:
			return "", nil, apperr.FromStore(op, err)
		}
	}

	u, err := s.st.Users.GetByID(ctx, target)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return "", nil, apperr.New(apperr.NotFound, op, "no such user")
		}
		return "", nil, apperr.FromStore(op, err)
	}
	return normalize.Email(u.Email), &u, nil
}

func (s *Service) checkWorkspaceInvite(ctx context.Context, op string, inv *models.Invitation, wsID primitive.ObjectID, roleIn string, invitee *models.User) error {
	ws, err := s.st.Workspaces.GetByID(ctx, wsID)
	if err != nil {
		if errors.Is(err, workspacestore.ErrNotFound) {
			return apperr.Wrap(apperr.NotFound, op, err)
		}
		return apperr.FromStore(op, err)
	}
	if ws.Personal {
		return apperr.New(apperr.InvalidArgument, op, "personal workspaces cannot be shared")
	}

	callerRole := s.activeRole(ctx, ws.ID, inv.InvitedBy)
	if !workspacepolicy.CanInvite(callerRole, ws.Settings) {
		return apperr.New(apperr.Forbidden, op, "not allowed to invite to this workspace")
	}

	role := ws.Settings.DefaultMemberRole
	if roleIn != "" {
		var ok bool
		if role, ok = models.ParseRole(roleIn); !ok {
			return apperr.New(apperr.InvalidArgument, op, "role must be admin or member")
		}
	}
	if role == "" {
		role = models.RoleMember
	}
	if !inputval.IsValidInviteRole(string(role)) {
		return apperr.New(apperr.InvalidArgument, op, "role must be admin or member")
	}
	if !workspacepolicy.CanAssignRole(callerRole, role) {
		return apperr.New(apperr.Forbidden, op, "not allowed to offer this role")
	}

	if invitee != nil && s.activeRole(ctx, ws.ID, invitee.ID) != "" {
		return apperr.New(apperr.Conflict, op, "already a member")
	}

	id := ws.ID
	inv.WorkspaceID = &id
	inv.WorkspaceName = ws.Name
	inv.TargetKey = ws.ID.Hex()
	inv.Role = role
	return nil
}

// activeRole returns userID's active role in wsID, or "".
func (s *Service) activeRole(ctx context.Context, wsID primitive.ObjectID, userID string) models.Role {
	m, err := s.st.Members.Get(ctx, wsID, userID)
	if err != nil || !m.IsActive() {
		return ""
	}
	return m.Role
}

// ListPendingFor returns the open invitations addressed to the user,
// newest first. When the ordered query cannot run (its index is missing)
// the unordered result is sorted here instead.
func (s *Service) ListPendingFor(ctx context.Context, userID, email string) ([]models.Invitation, error) {
	const op = "invitations.ListPendingFor"
	if email == "" {
		u, err := s.st.Users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, userstore.ErrNotFound) {
				return nil, apperr.Wrap(apperr.NotFound, op, err)
			}
			return nil, apperr.FromStore(op, err)
		}
		email = u.Email
	}
	email = normalize.Email(email)
	now := s.now()

	out, err := s.st.Invitations.ListPendingForInvitee(ctx, email, now, true)
	if errors.Is(err, invitationstore.ErrIndexUnavailable) {
		s.log.Warn("ordered invitation query unavailable; sorting in memory", zap.Error(err))
		s.metrics.OrderedFallback()
		out, err = s.st.Invitations.ListPendingForInvitee(ctx, email, now, false)
		if err == nil {
			SortNewestFirst(out)
		}
	}
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	return out, nil
}

// SortNewestFirst orders invitations by creation time, newest first.
func SortNewestFirst(invs []models.Invitation) {
	sort.SliceStable(invs, func(i, j int) bool {
		if !invs[i].CreatedAt.Equal(invs[j].CreatedAt) {
			return invs[i].CreatedAt.After(invs[j].CreatedAt)
		}
		return invs[i].ID.Hex() > invs[j].ID.Hex()
	})
}

// ListForWorkspace returns every invitation of wsID, in any status.
// Owner and admin only.
func (s *Service) ListForWorkspace(ctx context.Context, callerID string, wsID primitive.ObjectID) ([]models.Invitation, error) {
	const op = "invitations.ListForWorkspace"
	if _, err := s.st.Workspaces.GetByID(ctx, wsID); err != nil {
		if errors.Is(err, workspacestore.ErrNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, op, err)
		}
		return nil, apperr.FromStore(op, err)
	}
	if !workspacepolicy.CanViewInvitations(s.activeRole(ctx, wsID, callerID)) {
		return nil, apperr.New(apperr.Forbidden, op, "owner or admin only")
	}
	out, err := s.st.Invitations.ListByWorkspace(ctx, wsID)
	return out, apperr.FromStore(op, err)
}

// ListSent returns the invitations the user sent, newest first.
func (s *Service) ListSent(ctx context.Context, inviterID string) ([]models.Invitation, error) {
	out, err := s.st.Invitations.ListByInviter(ctx, inviterID)
	return out, apperr.FromStore("invitations.ListSent", err)
}

// InviteLink is the URL that signs the invitee in and accepts the
// invitation.
func InviteLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/login/google?invite=" + url.QueryEscape(token)
}

// Link returns the invite link of inv under the configured base URL.
func (s *Service) Link(inv models.Invitation) string {
	return InviteLink(s.cfg.BaseURL, inv.Token)
}

func addressedTo(inv models.Invitation, u models.User) bool {
	if inv.InviteeID != "" && inv.InviteeID == u.ID {
		return true
	}
	return inv.InvitedEmail != "" && inv.InvitedEmail == normalize.Email(u.Email)
}

// load fetches the invitation and the acting user and checks that the
// invitation is still open and addressed to them.
func (s *Service) load(ctx context.Context, op string, id primitive.ObjectID, userID string) (models.Invitation, models.User, error) {
	inv, err := s.st.Invitations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, invitationstore.ErrNotFound) {
			return inv, models.User{}, apperr.Wrap(apperr.NotFound, op, err)
		}
		return inv, models.User{}, apperr.FromStore(op, err)
	}
	u, err := s.st.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return inv, u, apperr.New(apperr.Forbidden, op, "no profile")
		}
		return inv, u, apperr.FromStore(op, err)
	}
	if !addressedTo(inv, u) {
		return inv, u, apperr.New(apperr.Forbidden, op, "invitation is addressed to someone else")
	}

	switch inv.Status {
	case models.InvitePending:
	case models.InviteExpired:
		return inv, u, apperr.New(apperr.Expired, op, "invitation expired")
	default:
		return inv, u, apperr.New(apperr.Conflict, op, "invitation already "+inv.Status)
	}

	if inv.IsExpired(s.now()) {
		s.expire(ctx, inv)
		return inv, u, apperr.New(apperr.Expired, op, "invitation expired")
	}
	return inv, u, nil
}

// expire marks one past-due invitation expired, best effort.
func (s *Service) expire(ctx context.Context, inv models.Invitation) {
	got, err := s.st.Invitations.Resolve(ctx, inv.ID, models.InviteExpired, s.now(), "")
	if err != nil {
		if !errors.Is(err, invitationstore.ErrNotPending) {
			s.log.Warn("could not mark invitation expired",
				zap.String("invitation_id", inv.ID.Hex()), zap.Error(err))
		}
		return
	}
	s.pub.Publish(realtime.InvitationEvent(realtime.Modified, got))
	s.metrics.InvitationsExpired(1)
}

// Accept turns the invitation into an active membership of userID and
// returns the workspace joined. The steps run in order, inside a
// transaction when the store has one:
//
//  1. ensure shared workspace (direct invitations create or reuse the
//     pair workspace)
//  2. activate membership (an active membership is reused as is)
//  3. record association
//  4. resolve invitation (only if still pending)
//
// On failure the applied steps are undone and the error names the step.
func (s *Service) Accept(ctx context.Context, invitationID primitive.ObjectID, userID string) (primitive.ObjectID, error) {
	const op = "invitations.Accept"
	inv, user, err := s.load(ctx, op, invitationID, userID)
	if err != nil {
		s.metrics.Invitation("failed")
		return primitive.NilObjectID, err
	}

	var (
		ws          models.Workspace
		member      models.Membership
		joined      bool
		resolved    models.Invitation
		inviterBack *rejoin
	)
	err = s.tx.Run(ctx, func(ctx context.Context) error {
		steps := txn.NewSteps(op, s.log)
		joined = false
		inviterBack = nil

		var (
			createdPair bool
			back        *rejoin
		)
		if err := steps.Do(ctx, "ensure shared workspace", func(ctx context.Context) error {
			var err error
			ws, createdPair, back, err = s.targetWorkspace(ctx, op, inv, user)
			return err
		}, func(ctx context.Context) error {
			if createdPair {
				return s.registry.Discard(ctx, ws.ID)
			}
			if back != nil {
				return back.undo(ctx, s)
			}
			return nil
		}); err != nil {
			return err
		}

		var prevMember *models.Membership
		if err := steps.Do(ctx, "activate membership", func(ctx context.Context) error {
			var err error
			member, prevMember, joined, err = s.activate(ctx, ws, inv, user)
			return err
		}, func(ctx context.Context) error {
			if !joined {
				return nil
			}
			if prevMember == nil {
				return s.st.Members.Delete(ctx, member.ID)
			}
			return s.st.Members.Replace(ctx, *prevMember)
		}); err != nil {
			return err
		}

		var prevAssoc *models.UserWorkspace
		if err := steps.Do(ctx, "record association", func(ctx context.Context) error {
			if cur, err := s.st.Assoc.Get(ctx, user.ID, ws.ID); err == nil {
				prevAssoc = &cur
			}
			now := s.now()
			uw := models.UserWorkspace{UserID: user.ID, WorkspaceID: ws.ID, Role: member.Role, JoinedAt: member.JoinedAt, LastAccessed: now}
			if prevAssoc != nil {
				uw.ID = prevAssoc.ID
				uw.IsFavorite = prevAssoc.IsFavorite
			}
			_, err := s.st.Assoc.Put(ctx, uw)
			return err
		}, func(ctx context.Context) error {
			if prevAssoc == nil {
				return s.st.Assoc.Delete(ctx, user.ID, ws.ID)
			}
			_, err := s.st.Assoc.Put(ctx, *prevAssoc)
			return err
		}); err != nil {
			return err
		}

		if err := steps.Do(ctx, "resolve invitation", func(ctx context.Context) error {
			var err error
			resolved, err = s.st.Invitations.Resolve(ctx, inv.ID, models.InviteAccepted, s.now(), user.ID)
			switch {
			case errors.Is(err, invitationstore.ErrNotPending):
				return apperr.Wrap(apperr.Conflict, op, err)
			case errors.Is(err, invitationstore.ErrNotFound):
				return apperr.Wrap(apperr.NotFound, op, err)
			}
			return err
		}, nil); err != nil {
			return err
		}
		inviterBack = back
		return nil
	})
	if err != nil {
		s.metrics.Invitation("failed")
		s.log.Warn("invitation accept failed",
			zap.String("invitation_id", inv.ID.Hex()),
			zap.String("user_id", userID),
			zap.String("step", apperr.StepOf(err)),
			zap.Error(err))
		return primitive.NilObjectID, apperr.FromStore(op, err)
	}

	events := []realtime.Event{realtime.InvitationEvent(realtime.Modified, resolved)}
	if inviterBack != nil {
		events = append(events, realtime.MembershipEvent(realtime.Added, inviterBack.member))
	}
	if joined {
		events = append(events, realtime.MembershipEvent(realtime.Added, member))
	}
	s.pub.Publish(events...)
	s.audit.InvitationAccepted(ctx, resolved, user.ID, ws.ID)
	s.metrics.Invitation("accepted")
	if inviterBack != nil {
		s.metrics.MembershipChange("joined")
	}
	if joined {
		s.metrics.MembershipChange("joined")
	}
	s.log.Info("invitation accepted",
		zap.String("invitation_id", inv.ID.Hex()),
		zap.String("workspace_id", ws.ID.Hex()),
		zap.String("user_id", user.ID))
	return ws.ID, nil
}

// AcceptByToken accepts the invitation an invite link carries.
func (s *Service) AcceptByToken(ctx context.Context, token, userID string) (primitive.ObjectID, error) {
	inv, err := s.st.Invitations.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, invitationstore.ErrNotFound) {
			return primitive.NilObjectID, apperr.Wrap(apperr.NotFound, "invitations.AcceptByToken", err)
		}
		return primitive.NilObjectID, apperr.FromStore("invitations.AcceptByToken", err)
	}
	return s.Accept(ctx, inv.ID, userID)
}

// targetWorkspace returns the workspace the invitation leads to. When a
// direct invitation reuses a pair workspace the inviter has left, the
// inviter's membership is restored and returned as back.
func (s *Service) targetWorkspace(ctx context.Context, op string, inv models.Invitation, user models.User) (ws models.Workspace, created bool, back *rejoin, err error) {
	if inv.IsDirect() {
		inviter, err := s.st.Users.GetByID(ctx, inv.InvitedBy)
		if err != nil {
			if errors.Is(err, userstore.ErrNotFound) {
				return models.Workspace{}, false, nil, apperr.Wrap(apperr.NotFound, op, err)
			}
			return models.Workspace{}, false, nil, err
		}
		ws, created, err = s.registry.EnsurePair(ctx, inviter, user)
		if err != nil || created {
			return ws, created, nil, err
		}
		back, err = s.restoreInviter(ctx, ws, inviter)
		return ws, false, back, err
	}
	ws, err = s.st.Workspaces.GetByID(ctx, *inv.WorkspaceID)
	if errors.Is(err, workspacestore.ErrNotFound) {
		return models.Workspace{}, false, nil, apperr.Wrap(apperr.NotFound, op, err)
	}
	return ws, false, nil, err
}

// rejoin records an inviter membership restored by restoreInviter and what
// it replaced.
type rejoin struct {
	member    models.Membership
	prev      *models.Membership
	prevAssoc *models.UserWorkspace
}

// restoreInviter makes the inviter an active member of the reused pair
// workspace again. It returns nil when the inviter is still active.
func (s *Service) restoreInviter(ctx context.Context, ws models.Workspace, inviter models.User) (*rejoin, error) {
	cur, err := s.st.Members.Get(ctx, ws.ID, inviter.ID)
	if err == nil && cur.IsActive() {
		return nil, nil
	}
	if err != nil && !errors.Is(err, membershipstore.ErrNotFound) {
		return nil, err
	}

	role := models.RoleMember
	if ws.OwnerID == inviter.ID {
		role = models.RoleOwner
	}
	now := s.now()
	r := &rejoin{}
	if err == nil {
		old := cur
		r.prev = &old
		if cur.Role != "" && (cur.Role != models.RoleOwner || role == models.RoleOwner) {
			role = cur.Role
		}
		cur.Status = models.MemberActive
		cur.Role = role
		cur.Email = inviter.Email
		cur.DisplayName = inviter.DisplayName
		cur.PhotoURL = inviter.PhotoURL
		cur.JoinedAt = now
		cur.UpdatedAt = now
		cur.RemovedAt = nil
		cur.RemovedBy = ""
		if err := s.st.Members.Replace(ctx, cur); err != nil {
			return nil, err
		}
		r.member = cur
	} else {
		ins, err := s.st.Members.Insert(ctx, models.Membership{
			WorkspaceID: ws.ID,
			UserID:      inviter.ID,
			Email:       inviter.Email,
			DisplayName: inviter.DisplayName,
			PhotoURL:    inviter.PhotoURL,
			Role:        role,
			Status:      models.MemberActive,
			JoinedAt:    now,
		})
		if err != nil {
			return nil, err
		}
		r.member = ins
	}

	uw := models.UserWorkspace{UserID: inviter.ID, WorkspaceID: ws.ID, Role: r.member.Role, JoinedAt: now, LastAccessed: now}
	if prev, err := s.st.Assoc.Get(ctx, inviter.ID, ws.ID); err == nil {
		r.prevAssoc = &prev
		uw.ID = prev.ID
		uw.IsFavorite = prev.IsFavorite
	}
	if _, err := s.st.Assoc.Put(ctx, uw); err != nil {
		if uerr := r.undoMember(ctx, s); uerr != nil {
			s.log.Warn("could not undo inviter membership", zap.Error(uerr))
		}
		return nil, err
	}
	return r, nil
}

func (r *rejoin) undoMember(ctx context.Context, s *Service) error {
	if r.prev == nil {
		return s.st.Members.Delete(ctx, r.member.ID)
	}
	return s.st.Members.Replace(ctx, *r.prev)
}

func (r *rejoin) undo(ctx context.Context, s *Service) error {
	var err error
	if r.prevAssoc == nil {
		err = s.st.Assoc.Delete(ctx, r.member.UserID, r.member.WorkspaceID)
	} else {
		_, err = s.st.Assoc.Put(ctx, *r.prevAssoc)
	}
	return errors.Join(err, r.undoMember(ctx, s))
}

// activate creates or reactivates the user's membership in ws. joined is
// false when an active membership already existed; prev is the removed
// membership that was reactivated, if any.
func (s *Service) activate(ctx context.Context, ws models.Workspace, inv models.Invitation, user models.User) (models.Membership, *models.Membership, bool, error) {
	cur, err := s.st.Members.Get(ctx, ws.ID, user.ID)
	switch {
	case err == nil && cur.IsActive():
		return cur, nil, false, nil
	case err == nil:
		old := cur
		cur.Status = models.MemberActive
		cur.Role = inv.Role
		cur.Email = user.Email
		cur.DisplayName = user.DisplayName
		cur.PhotoURL = user.PhotoURL
		cur.InvitedBy = inv.InvitedBy
		cur.JoinedAt = s.now()
		cur.UpdatedAt = cur.JoinedAt
		cur.RemovedAt = nil
		cur.RemovedBy = ""
		if err := s.st.Members.Replace(ctx, cur); err != nil {
			return models.Membership{}, nil, false, err
		}
		return cur, &old, true, nil
	case errors.Is(err, membershipstore.ErrNotFound):
		ins, err := s.st.Members.Insert(ctx, models.Membership{
			WorkspaceID: ws.ID,
			UserID:      user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			PhotoURL:    user.PhotoURL,
			Role:        inv.Role,
			Status:      models.MemberActive,
			InvitedBy:   inv.InvitedBy,
			JoinedAt:    s.now(),
		})
		if errors.Is(err, membershipstore.ErrDuplicate) {
			return models.Membership{}, nil, false, apperr.Wrap(apperr.Conflict, "invitations.Accept", err)
		}
		return ins, nil, err == nil, err
	default:
		return models.Membership{}, nil, false, err
	}
}

// Reject marks the invitation rejected.
func (s *Service) Reject(ctx context.Context, invitationID primitive.ObjectID, userID string) error {
	const op = "invitations.Reject"
	inv, _, err := s.load(ctx, op, invitationID, userID)
	if err != nil {
		return err
	}
	got, err := s.st.Invitations.Resolve(ctx, inv.ID, models.InviteRejected, s.now(), userID)
	if err != nil {
		switch {
		case errors.Is(err, invitationstore.ErrNotPending):
			return apperr.Wrap(apperr.Conflict, op, err)
		case errors.Is(err, invitationstore.ErrNotFound):
			return apperr.Wrap(apperr.NotFound, op, err)
		}
		return apperr.FromStore(op, err)
	}
	s.pub.Publish(realtime.InvitationEvent(realtime.Modified, got))
	s.audit.InvitationRejected(ctx, got, userID)
	s.metrics.Invitation("rejected")
	return nil
}

// ExpireDue marks every past-due pending invitation expired and returns
// how many changed.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	changed, err := s.st.Invitations.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, apperr.FromStore("invitations.ExpireDue", err)
	}
	if len(changed) == 0 {
		return 0, nil
	}
	events := make([]realtime.Event, 0, len(changed))
	for _, inv := range changed {
		events = append(events, realtime.InvitationEvent(realtime.Modified, inv))
	}
	s.pub.Publish(events...)
	s.audit.InvitationsExpired(ctx, len(changed))
	s.metrics.InvitationsExpired(len(changed))
	return len(changed), nil
}

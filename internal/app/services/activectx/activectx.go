// Package activectx owns the per-session active workspace context.
//
// A Session points at Personal or Shared(workspace). Switching is a full
// handoff: the new scope's subscription and snapshot are staged, the
// choice is persisted, and only then is the old subscription cancelled
// and the generation bumped. Events of an older generation are dropped,
// so nothing from the previous scope reaches the consumer after a switch.
package activectx

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/taskhub/internal/app/services/content"
	"github.com/dalemusser/taskhub/internal/app/services/invitations"
	prefstore "github.com/dalemusser/taskhub/internal/app/store/prefs"
	sessionstore "github.com/dalemusser/taskhub/internal/app/store/sessions"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/metrics"
	"github.com/dalemusser/taskhub/internal/app/system/realtime"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Update kinds.
const (
	KindContextChanged = "context_changed"
	KindScope          = "scope"
)

// outBuffer bounds the updates queued for a slow consumer.
const outBuffer = 256

// Target is the active context: Personal, or Shared(workspace).
type Target struct {
	WorkspaceID primitive.ObjectID `json:"workspace_id,omitempty"`
}

func Personal() Target { return Target{} }

func Shared(id primitive.ObjectID) Target { return Target{WorkspaceID: id} }

func (t Target) IsPersonal() bool { return t.WorkspaceID.IsZero() }

func (t Target) Equal(o Target) bool { return t.WorkspaceID == o.WorkspaceID }

// String is the persisted form: "" for Personal, else the workspace hex id.
func (t Target) String() string {
	if t.IsPersonal() {
		return ""
	}
	return t.WorkspaceID.Hex()
}

// ParseTarget reads the persisted form.
func ParseTarget(s string) (Target, bool) {
	if s == "" || s == "personal" {
		return Personal(), true
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return Target{}, false
	}
	return Shared(id), true
}

// Update is delivered to the session's consumer.
type Update struct {
	Kind        string             `json:"kind"`
	Generation  uint64             `json:"generation"`
	Target      Target             `json:"target"`
	WorkspaceID primitive.ObjectID `json:"workspace_id"`
	Role        models.Role        `json:"role,omitempty"`
	Scope       *content.Scope     `json:"scope,omitempty"`
	Events      []realtime.Event   `json:"events,omitempty"`
}

type Workspaces interface {
	EnsurePersonal(ctx context.Context, u models.User) (models.Workspace, error)
	Role(ctx context.Context, userID string, wsID primitive.ObjectID) (models.Workspace, models.Role, error)
}

type Members interface {
	Touch(ctx context.Context, userID string, wsID primitive.ObjectID) error
}

type Content interface {
	Load(ctx context.Context, wsID primitive.ObjectID) (content.Scope, error)
}

type Invitations interface {
	Watch(ctx context.Context, hub invitations.Subscriber, userID, email string) (*invitations.Watcher, error)
}

type Prefs interface {
	Get(ctx context.Context, userID, key string) (string, bool, error)
	Set(ctx context.Context, userID, key, value string) error
	Remove(ctx context.Context, userID, key string) error
}

// SessionLog records sessions for the activity trail.
type SessionLog interface {
	Create(ctx context.Context, sess sessionstore.Session) (sessionstore.Session, error)
	Touch(ctx context.Context, token, currentWorkspace string) error
	Close(ctx context.Context, token, reason string) error
}

var (
	_ Prefs      = (*prefstore.Store)(nil)
	_ SessionLog = (*sessionstore.Store)(nil)
)

// Deps are the collaborators of a Manager.
type Deps struct {
	Workspaces  Workspaces
	Members     Members
	Content     Content
	Invitations Invitations
	Prefs       Prefs
	Sessions    SessionLog
	Hub         invitations.Subscriber
	Audit       *auditlog.Logger
	Metrics     *metrics.Metrics
	Log         *zap.Logger
}

// Manager holds the open sessions, keyed by session token.
type Manager struct {
	d Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(d Deps) *Manager {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Manager{d: d, sessions: make(map[string]*Session)}
}

// OpenInput describes a signed-in browser session.
type OpenInput struct {
	Token     string
	User      models.User
	IP        string
	UserAgent string
}

// Open returns the session for in.Token, starting it if needed. A new
// session resumes the saved context when the user is still an active
// member there, and falls back to Personal otherwise.
func (m *Manager) Open(ctx context.Context, in OpenInput) (*Session, error) {
	const op = "activectx.Open"
	if in.Token == "" || in.User.ID == "" {
		return nil, apperr.New(apperr.InvalidArgument, op, "token and user are required")
	}
	m.mu.Lock()
	if s, ok := m.sessions[in.Token]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	personal, err := m.d.Workspaces.EnsurePersonal(ctx, in.User)
	if err != nil {
		return nil, err
	}

	s := &Session{
		d:        m.d,
		log:      m.d.Log.With(zap.String("user_id", in.User.ID)),
		token:    in.Token,
		user:     in.User,
		personal: personal.ID,
		out:      make(chan Update, outBuffer),
	}

	if m.d.Sessions != nil {
		if _, err := m.d.Sessions.Create(ctx, sessionstore.Session{
			Token:     in.Token,
			UserID:    in.User.ID,
			IP:        in.IP,
			UserAgent: in.UserAgent,
		}); err != nil {
			s.log.Warn("could not record session", zap.Error(err))
		}
	}

	if m.d.Invitations != nil {
		w, err := m.d.Invitations.Watch(ctx, m.d.Hub, in.User.ID, in.User.Email)
		if err != nil {
			return nil, err
		}
		s.watcher = w
	}

	if err := s.SwitchTo(ctx, s.resumeTarget(ctx)); err != nil {
		if !apperr.IsForbidden(err) && !apperr.IsNotFound(err) {
			s.release()
			return nil, err
		}
		s.forget(ctx)
		if err := s.SwitchTo(ctx, Personal()); err != nil {
			s.release()
			return nil, err
		}
	}

	m.mu.Lock()
	if existing, ok := m.sessions[in.Token]; ok {
		m.mu.Unlock()
		// The session record is shared with existing.
		s.teardown()
		return existing, nil
	}
	m.sessions[in.Token] = s
	n := len(m.sessions)
	m.mu.Unlock()
	m.d.Metrics.SetOpenSessions(n)
	return s, nil
}

// Get returns the open session for token.
func (m *Manager) Get(token string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	return s, ok
}

func (m *Manager) take(token string) (*Session, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[token]
	delete(m.sessions, token)
	return s, len(m.sessions)
}

// End closes the session on logout and clears the saved context.
func (m *Manager) End(ctx context.Context, token string) error {
	s, n := m.take(token)
	m.d.Metrics.SetOpenSessions(n)
	if s == nil {
		return nil
	}
	s.forget(ctx)
	return s.close(ctx, sessionstore.EndLogout)
}

// Expire closes the given sessions without clearing the saved context, so
// the next sign-in resumes where the user left off.
func (m *Manager) Expire(ctx context.Context, tokens []string, reason string) int {
	closed := 0
	for _, t := range tokens {
		s, n := m.take(t)
		m.d.Metrics.SetOpenSessions(n)
		if s == nil {
			continue
		}
		if err := s.close(ctx, reason); err != nil {
			s.log.Warn("closing session failed", zap.Error(err))
		}
		closed++
	}
	return closed
}

// Tokens lists the open session tokens.
func (m *Manager) Tokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for t := range m.sessions {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Shutdown closes every open session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.Expire(ctx, m.Tokens(), sessionstore.EndShutdown)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Session                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// Session is one signed-in browser session's active context.
type Session struct {
	d        Deps
	log      *zap.Logger
	token    string
	user     models.User
	personal primitive.ObjectID
	watcher  *invitations.Watcher

	// switchMu serializes switches and close.
	switchMu sync.Mutex

	mu     sync.Mutex
	target Target
	wsID   primitive.ObjectID
	role   models.Role
	gen    uint64
	sub    *realtime.Subscription
	stop   context.CancelFunc
	cache  *scopeCache
	closed bool

	out chan Update
}

// Current returns the active target, its workspace and the user's role.
func (s *Session) Current() (Target, primitive.ObjectID, models.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target, s.wsID, s.role
}

// Generation increases with every committed switch.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// User returns the session's user.
func (s *Session) User() models.User { return s.user }

// Token returns the session token.
func (s *Session) Token() string { return s.token }

// PersonalWorkspace returns the id of the user's personal workspace.
func (s *Session) PersonalWorkspace() primitive.ObjectID { return s.personal }

// Watch returns the session's update stream. It is closed when the
// session ends. There is one stream per session.
func (s *Session) Watch() <-chan Update { return s.out }

// Heartbeat marks the session as alive in the session log.
func (s *Session) Heartbeat(ctx context.Context) error {
	if s.d.Sessions == nil {
		return nil
	}
	t, _, _ := s.Current()
	if err := s.d.Sessions.Touch(ctx, s.token, t.String()); err != nil && !errors.Is(err, sessionstore.ErrNotFound) {
		return apperr.FromStore("activectx.Heartbeat", err)
	}
	return nil
}

// Invitations returns the pending-invitation watcher, or nil when the
// manager runs without one.
func (s *Session) Invitations() *invitations.Watcher { return s.watcher }

// Snapshot returns the scoped content of the current context as held by
// the session cache.
func (s *Session) Snapshot() content.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache == nil {
		return content.Scope{WorkspaceID: s.wsID}
	}
	return s.cache.scope()
}

func (s *Session) resumeTarget(ctx context.Context) Target {
	if s.d.Prefs == nil {
		return Personal()
	}
	v, ok, err := s.d.Prefs.Get(ctx, s.user.ID, models.PrefCurrentWorkspace)
	if err != nil {
		s.log.Warn("could not read saved workspace", zap.Error(err))
		return Personal()
	}
	if !ok {
		return Personal()
	}
	t, ok := ParseTarget(v)
	if !ok {
		return Personal()
	}
	return t
}

func (s *Session) forget(ctx context.Context) {
	if s.d.Prefs == nil {
		return
	}
	if err := s.d.Prefs.Remove(ctx, s.user.ID, models.PrefCurrentWorkspace); err != nil {
		s.log.Warn("could not clear saved workspace", zap.Error(err))
	}
}

func (s *Session) resolve(ctx context.Context, op string, t Target) (primitive.ObjectID, models.Role, error) {
	wsID := t.WorkspaceID
	if t.IsPersonal() {
		wsID = s.personal
	}
	_, role, err := s.d.Workspaces.Role(ctx, s.user.ID, wsID)
	if err != nil {
		return primitive.NilObjectID, "", err
	}
	if role == "" {
		return primitive.NilObjectID, "", apperr.New(apperr.Forbidden, op, "not a member of this workspace")
	}
	return wsID, role, nil
}

// SwitchTo makes t the active context. On error the previous context
// stays fully in place.
func (s *Session) SwitchTo(ctx context.Context, t Target) error {
	const op = "activectx.SwitchTo"
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	closed, cur, started := s.closed, s.target, s.sub != nil
	s.mu.Unlock()
	if closed {
		return apperr.New(apperr.Conflict, op, "session has ended")
	}
	if started && cur.Equal(t) {
		return nil
	}

	// verify
	wsID, role, err := s.resolve(ctx, op, t)
	if err != nil {
		s.d.Metrics.ContextSwitch("denied")
		return err
	}

	// stage
	sub := s.d.Hub.Subscribe(realtime.Filter{
		Collections: []string{realtime.Tasks, realtime.Notes, realtime.Categories, realtime.Workspaces, realtime.Memberships},
		WorkspaceID: wsID,
	})
	snap, err := s.d.Content.Load(ctx, wsID)
	if err != nil {
		sub.Cancel()
		s.d.Metrics.ContextSwitch("failed")
		return apperr.StepFailed(op, "load scope", err, nil)
	}

	// persist
	if s.d.Prefs != nil {
		if t.IsPersonal() {
			err = s.d.Prefs.Remove(ctx, s.user.ID, models.PrefCurrentWorkspace)
		} else {
			err = s.d.Prefs.Set(ctx, s.user.ID, models.PrefCurrentWorkspace, t.String())
		}
		if err != nil {
			sub.Cancel()
			s.d.Metrics.ContextSwitch("failed")
			return apperr.StepFailed(op, "persist context", apperr.FromStore(op, err), nil)
		}
	}

	// commit
	s.mu.Lock()
	old, oldStop := s.sub, s.stop
	s.target, s.wsID, s.role = t, wsID, role
	s.gen++
	gen := s.gen
	s.sub = sub
	s.cache = newScopeCache(snap)
	pumpCtx, stop := context.WithCancel(context.Background())
	s.stop = stop
	s.mu.Unlock()
	if old != nil {
		old.Cancel()
		oldStop()
		s.d.Metrics.SubscriptionClosed()
	}
	s.d.Metrics.SubscriptionOpened()

	// touch
	if err := s.d.Members.Touch(ctx, s.user.ID, wsID); err != nil {
		s.log.Debug("could not record workspace access", zap.Error(err))
	}
	if s.d.Sessions != nil {
		if err := s.d.Sessions.Touch(ctx, s.token, t.String()); err != nil && !errors.Is(err, sessionstore.ErrNotFound) {
			s.log.Debug("could not touch session", zap.Error(err))
		}
	}

	// emit
	s.deliver(gen, Update{Kind: KindContextChanged, Target: t, WorkspaceID: wsID, Role: role, Scope: &snap})
	go s.pump(pumpCtx, gen, sub)

	var auditWS *primitive.ObjectID
	if !t.IsPersonal() {
		auditWS = &wsID
	}
	s.d.Audit.ContextSwitched(ctx, s.user.ID, auditWS)
	s.d.Metrics.ContextSwitch("ok")
	s.log.Debug("context switched",
		zap.String("workspace_id", wsID.Hex()),
		zap.Uint64("generation", gen))
	return nil
}

// deliver queues u if gen is still current. When the consumer has fallen
// behind the oldest queued scope update is dropped, so context changes
// always reach it.
func (s *Session) deliver(gen uint64, u Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return false
	}
	u.Generation = gen
	if u.Kind == KindScope && s.cache != nil {
		s.cache.apply(u.Events)
	}
	select {
	case s.out <- u:
		return true
	default:
	}

	queued := make([]Update, 0, cap(s.out)+1)
	for drained := false; !drained; {
		select {
		case q := <-s.out:
			queued = append(queued, q)
		default:
			drained = true
		}
	}
	queued = append(queued, u)
	drop := 0
	for i, q := range queued {
		if q.Kind == KindScope {
			drop = i
			break
		}
	}
	s.log.Warn("session consumer is behind; dropping an update", zap.String("kind", queued[drop].Kind))
	queued = append(queued[:drop], queued[drop+1:]...)
	for _, q := range queued {
		select {
		case s.out <- q:
		default:
		}
	}
	return true
}

func (s *Session) pump(ctx context.Context, gen uint64, sub *realtime.Subscription) {
	for {
		batch, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, realtime.ErrOverflow) {
				s.log.Warn("scope subscription overflowed; reloading")
				go s.reload(gen)
			}
			return
		}
		_, wsID, _ := s.Current()
		if !s.deliver(gen, Update{Kind: KindScope, WorkspaceID: wsID, Events: batch}) {
			return
		}
		if s.lostScope(wsID, batch) {
			go s.fallback(gen)
			return
		}
	}
}

// lostScope reports whether the batch removed the workspace or the user's
// own membership in it.
func (s *Session) lostScope(wsID primitive.ObjectID, batch []realtime.Event) bool {
	for _, e := range batch {
		switch e.Collection {
		case realtime.Workspaces:
			if e.Type == realtime.Removed && e.ID == wsID.Hex() {
				return true
			}
		case realtime.Memberships:
			m, ok := e.Doc.(models.Membership)
			if ok && m.UserID == s.user.ID && (e.Type == realtime.Removed || !m.IsActive()) {
				return true
			}
		}
	}
	return false
}

// fallback returns to Personal after the current scope disappeared.
func (s *Session) fallback(gen uint64) {
	if s.Generation() != gen {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.SwitchTo(ctx, Personal()); err != nil {
		s.log.Warn("could not return to personal workspace", zap.Error(err))
	}
}

// reload re-stages the current target after the subscription overflowed.
func (s *Session) reload(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.switchMu.Lock()
	s.mu.Lock()
	stale := s.gen != gen || s.closed
	t := s.target
	// Clearing sub makes SwitchTo treat the same target as a new one.
	if !stale && s.sub != nil {
		s.stop()
		s.sub, s.stop = nil, nil
		s.d.Metrics.SubscriptionClosed()
	}
	s.mu.Unlock()
	s.switchMu.Unlock()
	if stale {
		return
	}
	if err := s.SwitchTo(ctx, t); err != nil {
		s.log.Warn("reload failed; returning to personal", zap.Error(err))
		_ = s.SwitchTo(ctx, Personal())
	}
}

// release drops the resources of a session that never opened.
func (s *Session) release() {
	_ = s.close(context.Background(), sessionstore.EndLogout)
}

func (s *Session) close(ctx context.Context, reason string) error {
	if !s.teardown() {
		return nil
	}
	if s.d.Sessions != nil {
		if err := s.d.Sessions.Close(ctx, s.token, reason); err != nil && !errors.Is(err, sessionstore.ErrNotFound) {
			return apperr.FromStore("activectx.Close", err)
		}
	}
	s.log.Info("session closed", zap.String("reason", reason))
	return nil
}

// teardown stops the stream, the scope subscription and the invitation
// watcher. It reports false when the session was already closed.
func (s *Session) teardown() bool {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	sub, stop := s.sub, s.stop
	s.sub, s.stop, s.cache = nil, nil, nil
	close(s.out)
	s.mu.Unlock()

	if sub != nil {
		sub.Cancel()
		stop()
		s.d.Metrics.SubscriptionClosed()
	}
	if s.watcher != nil {
		s.watcher.Close()
	}
	return true
}

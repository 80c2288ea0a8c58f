// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/taskhub/internal/app/services/activectx"
	"github.com/dalemusser/taskhub/internal/app/services/content"
	"github.com/dalemusser/taskhub/internal/app/services/invitations"
	"github.com/dalemusser/taskhub/internal/app/services/members"
	"github.com/dalemusser/taskhub/internal/app/services/workspaces"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/metrics"
	"github.com/dalemusser/taskhub/internal/app/system/ratelimit"
	"github.com/dalemusser/taskhub/internal/app/system/realtime"
	"github.com/dalemusser/taskhub/internal/app/system/workers"
	"go.uber.org/zap"
)

const (
	// sessionSweepInterval is how often idle live sessions are looked for.
	sessionSweepInterval = time.Minute
	oauthSweepInterval   = time.Hour
)

// Request budgets for sign-in (per client address) and invitation sends
// (per user).
const (
	signInLimit = 20
	sendLimit   = 30
	limitWindow = time.Minute
)

type worker interface {
	Start()
	Stop()
}

// App is the running service graph.
type App struct {
	Hub     *realtime.Hub
	Metrics *metrics.Metrics
	Audit   *auditlog.Logger

	Workspaces  *workspaces.Service
	Members     *members.Service
	Invitations *invitations.Service
	Content     *content.Service
	Contexts    *activectx.Manager

	SignInLimit *ratelimit.Limiter
	SendLimit   *ratelimit.Limiter

	feeder  *realtime.ChangeStreamFeeder
	workers []worker

	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *zap.Logger
}

// Startup builds the services over deps. Workers and the change-stream
// feeder do not run until Start is called.
func Startup(cfg AppConfig, deps DBDeps, logger *zap.Logger) (*App, error) {
	st := deps.Stores
	a := &App{
		Hub:     realtime.NewHub(logger.Named("realtime")),
		Metrics: metrics.New("taskhub"),
		Audit: auditlog.New(st.Audit, logger.Named("audit"), auditlog.Config{
			Auth:      cfg.AuditLogAuth,
			Workspace: cfg.AuditLogAdmin,
		}),
		SignInLimit: ratelimit.New(signInLimit, limitWindow),
		SendLimit:   ratelimit.New(sendLimit, limitWindow),
		log:         logger,
	}

	// With change streams the feeder is the only publisher, so every
	// instance sees the same events, in commit order.
	var pub realtime.Publisher = a.Hub
	if cfg.RealtimeSource == "changestream" {
		pub = realtime.Nop{}
		a.feeder = realtime.NewChangeStreamFeeder(deps.MongoDatabase, a.Hub, logger.Named("changestream"))
		for coll, d := range realtime.Decoders() {
			a.feeder.Register(coll, d)
		}
	}

	a.Workspaces = workspaces.New(workspaces.Stores{
		Workspaces:  st.Workspaces,
		Members:     st.Memberships,
		Assoc:       st.UserWorkspaces,
		Invitations: st.Invitations,
		Categories:  st.Categories,
		Tasks:       st.Tasks,
		Notes:       st.Notes,
	}, deps.Tx, pub, a.Audit, logger.Named("workspaces"))

	a.Members = members.New(st.Workspaces, st.Memberships, st.UserWorkspaces, deps.Tx,
		pub, a.Audit, a.Metrics, logger.Named("members"))

	a.Invitations = invitations.New(invitations.Stores{
		Users:       st.Users,
		Workspaces:  st.Workspaces,
		Members:     st.Memberships,
		Assoc:       st.UserWorkspaces,
		Invitations: st.Invitations,
	}, a.Workspaces, deps.Tx, pub, a.Audit, a.Metrics, logger.Named("invitations"), invitations.Config{
		TTL:     cfg.InvitationTTL,
		BaseURL: cfg.BaseURL,
	})

	a.Content = content.New(st.Tasks, st.Notes, st.Categories, a.Members, deps.Tx, pub, logger.Named("content"))

	a.Contexts = activectx.NewManager(activectx.Deps{
		Workspaces:  a.Workspaces,
		Members:     a.Members,
		Content:     a.Content,
		Invitations: a.Invitations,
		Prefs:       st.Prefs,
		Sessions:    st.Sessions,
		Hub:         a.Hub,
		Audit:       a.Audit,
		Metrics:     a.Metrics,
		Log:         logger.Named("activectx"),
	})

	a.workers = []worker{
		workers.NewInvitationExpiry(a.Invitations, a.Metrics, logger, cfg.SweepInterval),
		workers.NewOrphanSweep(a.Workspaces, a.Metrics, logger, cfg.SweepInterval),
		workers.NewSessionCleanup(st.Sessions, a.Contexts, a.Metrics, logger, sessionSweepInterval, cfg.SessionIdleTimeout),
	}
	if c, ok := st.OAuthStates.(workers.ExpiredStateCleaner); ok {
		a.workers = append(a.workers, workers.NewOAuthStateCleanup(c, a.Metrics, logger, oauthSweepInterval))
	}
	return a, nil
}

// Start launches the workers and, when configured, the change-stream
// feeder.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	for _, w := range a.workers {
		w.Start()
	}
	if a.feeder != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.feeder.Run(ctx); err != nil {
				a.log.Error("change stream feeder stopped", zap.Error(err))
			}
		}()
	}
}

// Stop halts the background work started by Start.
func (a *App) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, w := range a.workers {
		w.Stop()
	}
	a.SignInLimit.Stop()
	a.SendLimit.Stop()
	a.wg.Wait()
}

// internal/app/bootstrap/routes.go
package bootstrap

import (
	"context"
	"net/http"
	"time"

	auditlogfeature "github.com/dalemusser/taskhub/internal/app/features/auditlog"
	authgooglefeature "github.com/dalemusser/taskhub/internal/app/features/authgoogle"
	contentfeature "github.com/dalemusser/taskhub/internal/app/features/content"
	errorsfeature "github.com/dalemusser/taskhub/internal/app/features/errors"
	eventsfeature "github.com/dalemusser/taskhub/internal/app/features/events"
	healthfeature "github.com/dalemusser/taskhub/internal/app/features/health"
	heartbeatfeature "github.com/dalemusser/taskhub/internal/app/features/heartbeat"
	invitationsfeature "github.com/dalemusser/taskhub/internal/app/features/invitations"
	loginfeature "github.com/dalemusser/taskhub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/taskhub/internal/app/features/logout"
	membersfeature "github.com/dalemusser/taskhub/internal/app/features/members"
	settingsfeature "github.com/dalemusser/taskhub/internal/app/features/settings"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	userinfofeature "github.com/dalemusser/taskhub/internal/app/features/userinfo"
	workspacesfeature "github.com/dalemusser/taskhub/internal/app/features/workspaces"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler.
//
// Public routes: /health, /metrics, /login/*, /logout. Everything under
// /api requires a signed-in session and answers JSON.
func BuildHandler(cfg AppConfig, deps DBDeps, a *App, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	sessionMgr, err := auth.NewSessionManager(cfg.SessionKey, cfg.SessionName, cfg.SessionDomain,
		cfg.SessionMaxAge, cfg.Secure(), logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	st := deps.Stores
	sessions := &shared.Sessions{Contexts: a.Contexts, Users: st.Users, Log: logger}
	flow := &loginfeature.Flow{
		Users:    st.Users,
		Sessions: sessionMgr,
		Contexts: a.Contexts,
		Invites:  a.Invitations,
		Audit:    a.Audit,
		Log:      logger.Named("login"),
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(a.Metrics.Middleware)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Global auth middleware: loads SessionUser into context if signed in.
	r.Use(sessionMgr.LoadSessionUser)

	errorsHandler := errorsfeature.NewHandler()
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	var pinger healthfeature.Pinger = healthfeature.MemoryPinger{}
	if deps.MongoClient != nil {
		pinger = healthfeature.MongoPinger{Client: deps.MongoClient}
	}
	healthHandler := healthfeature.NewHandler(pinger, deps.Backend, func() int { return len(a.Contexts.Tokens()) }, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Method(http.MethodGet, "/metrics", a.Metrics.Handler())

	// Authentication
	r.Group(func(r chi.Router) {
		r.Use(a.SignInLimit.Middleware(ratelimit.ByIP))
		if cfg.Env == "dev" {
			r.Mount("/login", loginfeature.Routes(loginfeature.NewHandler(flow, logger)))
		}
		googleHandler := authgooglefeature.NewHandler(flow, st.OAuthStates, a.Audit, cfg.SessionKey, cfg.Secure(),
			cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.BaseURL, logger.Named("google"))
		if !googleHandler.IsConfigured() {
			logger.Info("Google sign-in disabled; google_client_id/secret not set")
		}
		r.Mount("/login/google", authgooglefeature.Routes(googleHandler))
	})

	logoutHandler := logoutfeature.NewHandler(sessionMgr, a.Contexts, a.Audit, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	r.Route("/api", func(api chi.Router) {
		api.Use(sessionMgr.RequireSignedIn)

		api.Mount("/me", userinfofeature.Routes(userinfofeature.NewHandler(sessions, logger)))
		api.Mount("/prefs", settingsfeature.Routes(settingsfeature.NewHandler(st.Prefs, logger)))
		api.Mount("/heartbeat", heartbeatfeature.Routes(heartbeatfeature.NewHandler(sessions, logger)))
		api.Mount("/events", eventsfeature.Routes(eventsfeature.NewHandler(sessions, logger.Named("events"))))

		membersHandler := membersfeature.NewHandler(a.Members, logger)
		auditHandler := auditlogfeature.NewHandler(st.Audit, a.Members, st.Users, logger)
		invitationsHandler := invitationsfeature.NewHandler(a.Invitations, sessions, logger)
		workspacesHandler := workspacesfeature.NewHandler(a.Workspaces, a.Members, sessions, logger)

		api.Mount("/workspaces", workspacesfeature.Routes(workspacesHandler,
			membersfeature.WorkspaceRoutes(membersHandler),
			invitationsfeature.WorkspaceRoutes(invitationsHandler),
			auditlogfeature.WorkspaceRoutes(auditHandler),
		))
		api.Mount("/members", membersfeature.Routes(membersHandler))
		api.Mount("/invitations", invitationsfeature.Routes(invitationsHandler,
			a.SendLimit.Middleware(ratelimit.ByUser)))

		contentfeature.Register(api, contentfeature.NewHandler(a.Content, sessions, logger))
	})

	return r, nil
}

// requestID takes X-Request-ID from the client or mints one, and makes it
// available through middleware.GetReqID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog writes one line per request.
func accessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			switch {
			case ww.Status() >= 500:
				log.Error("request", fields...)
			case r.URL.Path == "/health" || r.URL.Path == "/metrics":
				log.Debug("request", fields...)
			default:
				log.Info("request", fields...)
			}
		})
	}
}

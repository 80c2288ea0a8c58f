// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for one category of events.
const (
	All = "all" // MongoDB + zap
	DB  = "db"
	Log = "log"
	Off = "off"
)

// Config holds audit logging configuration per category.
type Config struct {
	// Auth covers login and logout.
	Auth string
	// Workspace covers workspace, invitation and membership changes.
	Workspace string
}

// Sink persists audit events. *audit.Store is the production sink.
type Sink interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger writes audit events to zap and to the sink, as configured.
// A nil *Logger is valid and drops everything.
type Logger struct {
	sink   Sink
	zapLog *zap.Logger
	config Config
}

// New creates a Logger. sink may be nil, in which case "db" destinations
// are skipped.
func New(sink Sink, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{sink: sink, zapLog: zapLog, config: config}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.WorkspaceID != nil {
		fields = append(fields, zap.String("workspace_id", event.WorkspaceID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records event according to the setting of its category.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	setting := All
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryWorkspace:
		setting = l.config.Workspace
	}
	if setting == "" {
		setting = All
	}
	if setting == Off {
		return
	}

	if setting == All || setting == Log {
		l.logToZap(event)
	}
	if (setting == All || setting == DB) && l.sink != nil {
		// Audit writes outlive a cancelled request.
		if err := l.sink.Log(context.WithoutCancel(ctx), event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

// --- Authentication Events ---

func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID, provider string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"provider": provider},
	})
}

func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, provider, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailed,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		FailureReason: reason,
		Details:       map[string]string{"provider": provider},
	})
}

func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	})
}

// --- Workspace Events ---

func (l *Logger) workspace(ctx context.Context, eventType, actorID, userID string, wsID *primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryWorkspace,
		EventType:   eventType,
		WorkspaceID: wsID,
		ActorID:     actorID,
		UserID:      userID,
		Success:     true,
		Details:     details,
	})
}

func (l *Logger) WorkspaceCreated(ctx context.Context, ws models.Workspace) {
	l.workspace(ctx, audit.EventWorkspaceCreated, ws.OwnerID, "", &ws.ID, map[string]string{
		"name":     ws.Name,
		"personal": strconv.FormatBool(ws.Personal),
	})
}

func (l *Logger) WorkspaceUpdated(ctx context.Context, actorID string, ws models.Workspace) {
	l.workspace(ctx, audit.EventWorkspaceUpdated, actorID, "", &ws.ID, map[string]string{"name": ws.Name})
}

// WorkspaceDeleted records a finished cascade. counts maps collection to
// number of removed documents.
func (l *Logger) WorkspaceDeleted(ctx context.Context, actorID string, wsID primitive.ObjectID, counts map[string]int64) {
	details := make(map[string]string, len(counts))
	for k, v := range counts {
		details[k] = strconv.FormatInt(v, 10)
	}
	l.workspace(ctx, audit.EventWorkspaceDeleted, actorID, "", &wsID, details)
}

func (l *Logger) InvitationSent(ctx context.Context, inv models.Invitation) {
	l.workspace(ctx, audit.EventInvitationSent, inv.InvitedBy, inv.InviteeID, inv.WorkspaceID, map[string]string{
		"invitation_id": inv.ID.Hex(),
		"invited_email": inv.InvitedEmail,
		"role":          string(inv.Role),
		"target":        inv.TargetKey,
	})
}

func (l *Logger) InvitationAccepted(ctx context.Context, inv models.Invitation, userID string, wsID primitive.ObjectID) {
	l.workspace(ctx, audit.EventInvitationAccepted, userID, userID, &wsID, map[string]string{
		"invitation_id": inv.ID.Hex(),
		"invited_by":    inv.InvitedBy,
		"role":          string(inv.Role),
	})
}

func (l *Logger) InvitationRejected(ctx context.Context, inv models.Invitation, userID string) {
	l.workspace(ctx, audit.EventInvitationRejected, userID, userID, inv.WorkspaceID, map[string]string{
		"invitation_id": inv.ID.Hex(),
		"invited_by":    inv.InvitedBy,
	})
}

func (l *Logger) InvitationsExpired(ctx context.Context, n int) {
	l.workspace(ctx, audit.EventInvitationsExpired, "system", "", nil, map[string]string{
		"count": strconv.Itoa(n),
	})
}

func (l *Logger) MemberRoleChanged(ctx context.Context, actorID string, m models.Membership, from, to models.Role) {
	l.workspace(ctx, audit.EventMemberRoleChanged, actorID, m.UserID, &m.WorkspaceID, map[string]string{
		"from": string(from),
		"to":   string(to),
	})
}

func (l *Logger) MemberRemoved(ctx context.Context, actorID string, m models.Membership) {
	l.workspace(ctx, audit.EventMemberRemoved, actorID, m.UserID, &m.WorkspaceID, nil)
}

func (l *Logger) MemberLeft(ctx context.Context, m models.Membership) {
	l.workspace(ctx, audit.EventMemberLeft, m.UserID, m.UserID, &m.WorkspaceID, nil)
}

// ContextSwitched records a session moving to wsID (nil for Personal).
func (l *Logger) ContextSwitched(ctx context.Context, userID string, wsID *primitive.ObjectID) {
	l.workspace(ctx, audit.EventContextSwitched, userID, userID, wsID, nil)
}

// internal/app/features/events/handler.go
package events

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/content"
	"github.com/dalemusser/taskhub/internal/app/services/invitations"
	"go.uber.org/zap"
)

// Event names on the stream besides the session update kinds
// (activectx.KindContextChanged and activectx.KindScope).
const (
	EventSnapshot    = "snapshot"
	EventInvitations = "invitations"
	EventEnd         = "end"
)

// DefaultKeepAlive is how often an idle stream gets a comment line.
const DefaultKeepAlive = 25 * time.Second

// Handler streams a session's updates as server-sent events. The stream
// opens with a snapshot, then carries every context_changed and scope
// update of the session and every change to its pending invitations.
type Handler struct {
	Sessions  *shared.Sessions
	KeepAlive time.Duration
	Log       *zap.Logger
}

func NewHandler(sessions *shared.Sessions, logger *zap.Logger) *Handler {
	return &Handler{Sessions: sessions, KeepAlive: DefaultKeepAlive, Log: logger}
}

type snapshot struct {
	Context     shared.ContextView  `json:"context"`
	Scope       content.Scope       `json:"scope"`
	Invitations *invitations.Notice `json:"invitations,omitempty"`
}

// ServeEvents handles GET /api/events.
func (h *Handler) ServeEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.For(r)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	log := h.Log.With(zap.String("user_id", sess.User().ID))
	s := &stream{w: w, rc: rc}

	snap := snapshot{Context: shared.Describe(sess), Scope: sess.Snapshot()}
	var notices <-chan invitations.Notice
	if iw := sess.Invitations(); iw != nil {
		pending := iw.Pending()
		snap.Invitations = &invitations.Notice{
			Pending: pending,
			Count:   len(pending),
			Badge:   invitations.Badge(len(pending)),
		}
		notices = iw.Notices()
	}
	if err := s.send(EventSnapshot, snap); err != nil {
		log.Debug("event stream closed before snapshot", zap.Error(err))
		return
	}

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	tick := time.NewTicker(keepAlive)
	defer tick.Stop()

	updates := sess.Watch()
	for {
		select {
		case <-r.Context().Done():
			return
		case u, ok := <-updates:
			if !ok {
				// Session ended: logout, idle expiry or shutdown.
				_ = s.send(EventEnd, struct{}{})
				return
			}
			if err = s.send(u.Kind, u); err != nil {
				log.Debug("event stream write failed", zap.Error(err))
				return
			}
		case n, ok := <-notices:
			if !ok {
				notices = nil
				continue
			}
			if err = s.send(EventInvitations, n); err != nil {
				log.Debug("event stream write failed", zap.Error(err))
				return
			}
		case <-tick.C:
			if err = s.comment("keep-alive"); err != nil {
				return
			}
		}
	}
}

type stream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func (s *stream) send(event string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, b); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *stream) comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	return s.rc.Flush()
}

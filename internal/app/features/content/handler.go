// internal/app/features/content/handler.go
package content

import (
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/activectx"
	"github.com/dalemusser/taskhub/internal/app/services/content"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the scoped content of the caller's active context. New
// items land in the workspace the session is looking at; edits and
// deletes address items by id and are checked against their own
// workspace.
type Handler struct {
	Content  *content.Service
	Sessions *shared.Sessions
	Log      *zap.Logger
}

func NewHandler(svc *content.Service, sessions *shared.Sessions, logger *zap.Logger) *Handler {
	return &Handler{Content: svc, Sessions: sessions, Log: logger}
}

func actor(sess *activectx.Session) content.Actor {
	u := sess.User()
	return content.Actor{ID: u.ID, Name: u.DisplayName}
}

// active resolves the caller's session and its current workspace.
func (h *Handler) active(r *http.Request) (*activectx.Session, primitive.ObjectID, error) {
	sess, err := h.Sessions.For(r)
	if err != nil {
		return nil, primitive.NilObjectID, err
	}
	_, wsID, _ := sess.Current()
	return sess, wsID, nil
}

type scopeResponse struct {
	Context shared.ContextView `json:"context"`
	Scope   content.Scope      `json:"scope"`
}

// ServeContent handles GET /api/content: everything in the active
// context, as held by the session.
func (h *Handler) ServeContent(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.For(r)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, scopeResponse{Context: shared.Describe(sess), Scope: sess.Snapshot()})
}

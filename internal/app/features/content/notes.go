// internal/app/features/content/notes.go
package content

import (
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/content"
)

type noteRequest struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Pinned bool   `json:"pinned"`
}

type notePatchRequest struct {
	Title  *string `json:"title"`
	Body   *string `json:"body"`
	Pinned *bool   `json:"pinned"`
}

// HandleCreateNote handles POST /api/notes.
func (h *Handler) HandleCreateNote(w http.ResponseWriter, r *http.Request) {
	var in noteRequest
	if err := shared.Decode(w, r, &in); err != nil {
		writeErr(w, h.Log, err)
		return
	}
	sess, wsID, err := h.active(r)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	ctx, cancel := shared.Ctx(r)
	defer cancel()
	n, err := h.Content.CreateNote(ctx, actor(sess), wsID, content.NoteInput(in))
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusCreated, n)
}

// HandleUpdateNote handles PATCH /api/notes/{id}.
func (h *Handler) HandleUpdateNote(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	var in notePatchRequest
	if err := shared.Decode(w, r, &in); err != nil {
		writeErr(w, h.Log, err)
		return
	}
	sess, err := h.Sessions.For(r)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	ctx, cancel := shared.Ctx(r)
	defer cancel()
	n, err := h.Content.UpdateNote(ctx, actor(sess), id, content.NotePatch(in))
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, n)
}

// HandleDeleteNote handles DELETE /api/notes/{id}.
func (h *Handler) HandleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	sess, err := h.Sessions.For(r)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	ctx, cancel := shared.Ctx(r)
	defer cancel()
	if err := h.Content.DeleteNote(ctx, actor(sess), id); err != nil {
		writeErr(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

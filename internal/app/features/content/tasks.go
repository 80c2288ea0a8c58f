// internal/app/features/content/tasks.go
package content

import (
	"net/http"
	"time"

	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/content"
)

type taskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	CategoryID  *string    `json:"category_id"`
	DueAt       *time.Time `json:"due_at"`
	Order       int        `json:"order"`
}

type taskPatchRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority"`
	CategoryID  *string    `json:"category_id"`
	Completed   *bool      `json:"completed"`
	DueAt       *time.Time `json:"due_at"`
	Order       *int       `json:"order"`
}

type moveRequest struct {
	// WorkspaceID is the target workspace; "personal" names the caller's
	// personal workspace.
	WorkspaceID string `json:"workspace_id"`
}

// HandleCreateTask handles POST /api/tasks.
func (h *Handler) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in taskRequest
	if err := shared.Decode(w, r, &in); err != nil {
		writeErr(w, h.Log, err)
		return
	}
	catID, _, err := categoryRef(in.CategoryID)
	if err != nil {
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
	t, err := h.Content.CreateTask(ctx, actor(sess), wsID, content.TaskInput{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		CategoryID:  catID,
		DueAt:       in.DueAt,
		Order:       in.Order,
	})
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusCreated, t)
}

// HandleUpdateTask handles PATCH /api/tasks/{id}.
func (h *Handler) HandleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	var in taskPatchRequest
	if err := shared.Decode(w, r, &in); err != nil {
		writeErr(w, h.Log, err)
		return
	}
	catID, clearCat, err := categoryRef(in.CategoryID)
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
	t, err := h.Content.UpdateTask(ctx, actor(sess), id, content.TaskPatch{
		Title:         in.Title,
		Description:   in.Description,
		Priority:      in.Priority,
		CategoryID:    catID,
		ClearCategory: clearCat,
		Completed:     in.Completed,
		DueAt:         in.DueAt,
		Order:         in.Order,
	})
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, t)
}

// HandleDeleteTask handles DELETE /api/tasks/{id}.
func (h *Handler) HandleDeleteTask(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Content.DeleteTask(ctx, actor(sess), id); err != nil {
		writeErr(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMoveTask handles POST /api/tasks/{id}/move. The task leaves its
// category behind.
func (h *Handler) HandleMoveTask(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	var in moveRequest
	if err := shared.Decode(w, r, &in); err != nil {
		writeErr(w, h.Log, err)
		return
	}
	sess, err := h.Sessions.For(r)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}

	target, err := moveTarget(sess, in.WorkspaceID)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}

	ctx, cancel := shared.Ctx(r)
	defer cancel()
	t, err := h.Content.MoveTask(ctx, actor(sess), id, target)
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, t)
}

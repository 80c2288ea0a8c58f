// internal/app/features/content/categories.go
package content

import (
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/content"
)

type categoryRequest struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
	Order int    `json:"order"`
}

type categoryPatchRequest struct {
	Name  *string `json:"name"`
	Icon  *string `json:"icon"`
	Color *string `json:"color"`
	Order *int    `json:"order"`
}

// HandleCreateCategory handles POST /api/categories. The key is derived
// from the name and must be unique in the workspace.
func (h *Handler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in categoryRequest
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
	c, err := h.Content.CreateCategory(ctx, actor(sess), wsID, content.CategoryInput(in))
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusCreated, c)
}

// HandleUpdateCategory handles PATCH /api/categories/{id}.
func (h *Handler) HandleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectID(r, "id")
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	var in categoryPatchRequest
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
	c, err := h.Content.UpdateCategory(ctx, actor(sess), id, content.CategoryPatch(in))
	if err != nil {
		writeErr(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, c)
}

// HandleDeleteCategory handles DELETE /api/categories/{id}. Tasks in the
// category are kept without one; default categories stay.
func (h *Handler) HandleDeleteCategory(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Content.DeleteCategory(ctx, actor(sess), id); err != nil {
		writeErr(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

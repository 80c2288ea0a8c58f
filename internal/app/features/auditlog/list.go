// internal/app/features/auditlog/list.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/policy/workspacepolicy"
	"github.com/dalemusser/taskhub/internal/app/store/audit"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	pageSize   = 50
	dateLayout = "2006-01-02"
)

// ServeList handles GET /api/workspaces/{id}/audit. Owners and admins
// see the workspace's events, newest first, filtered by category,
// event_type, start_date and end_date (YYYY-MM-DD, UTC, end inclusive).
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	const op = "auditlog.ServeList"
	u, err := shared.Caller(r)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	wsID, err := shared.ObjectID(r, "id")
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	if h.Events == nil {
		uierrors.Write(w, h.Log, apperr.New(apperr.Unavailable, op, "audit trail is not stored"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	role, err := h.Roles.GetRole(ctx, u.ID, wsID)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	if !workspacepolicy.CanManageMembers(role) {
		uierrors.Write(w, h.Log, apperr.New(apperr.Forbidden, op, "owner or admin only"))
		return
	}

	f, page, err := parseFilter(r, wsID)
	if err != nil {
		uierrors.Write(w, h.Log, apperr.Wrap(apperr.InvalidArgument, op, err))
		return
	}

	events, err := h.Events.Query(ctx, f)
	if err != nil {
		uierrors.Write(w, h.Log, apperr.FromStore(op, err))
		return
	}
	total, err := h.Events.CountByFilter(ctx, f)
	if err != nil {
		uierrors.Write(w, h.Log, apperr.FromStore(op, err))
		return
	}

	items := make([]listItem, 0, len(events))
	names := h.names(ctx, events)
	for _, e := range events {
		items = append(items, listItem{
			ID:         e.ID.Hex(),
			Timestamp:  e.Timestamp,
			Category:   e.Category,
			EventType:  e.EventType,
			ActorID:    e.ActorID,
			ActorName:  names[e.ActorID],
			UserID:     e.UserID,
			TargetName: names[e.UserID],
			Success:    e.Success,
			Details:    e.Details,
		})
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages == 0 {
		totalPages = 1
	}
	shared.JSON(w, http.StatusOK, listResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	})
}

func parseFilter(r *http.Request, wsID primitive.ObjectID) (audit.QueryFilter, int, error) {
	page := 1
	if p, err := strconv.Atoi(query.Get(r, "page")); err == nil && p > 0 {
		page = p
	}
	f := audit.QueryFilter{
		WorkspaceID: &wsID,
		Category:    strings.TrimSpace(query.Get(r, "category")),
		EventType:   strings.TrimSpace(query.Get(r, "event_type")),
		Limit:       pageSize,
		Offset:      int64((page - 1) * pageSize),
	}
	if s := strings.TrimSpace(query.Get(r, "start_date")); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return f, 0, err
		}
		f.StartTime = &t
	}
	if s := strings.TrimSpace(query.Get(r, "end_date")); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return f, 0, err
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.EndTime = &end
	}
	return f, page, nil
}

// names resolves display names for every actor and target on the page.
// Unknown users are left blank.
func (h *Handler) names(ctx context.Context, events []audit.Event) map[string]string {
	out := make(map[string]string)
	for _, e := range events {
		for _, id := range []string{e.ActorID, e.UserID} {
			if id == "" {
				continue
			}
			if _, seen := out[id]; seen {
				continue
			}
			out[id] = ""
			if u, err := h.Users.GetByID(ctx, id); err == nil {
				out[id] = u.DisplayName
			}
		}
	}
	return out
}

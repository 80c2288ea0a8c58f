// internal/app/features/settings/handler.go
package settings

import (
	"context"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.uber.org/zap"
)

// DefaultTheme is reported when the user has not chosen one.
const DefaultTheme = "system"

var themes = map[string]bool{"light": true, "dark": true, "system": true}

// Prefs reads and writes per-user preferences.
type Prefs interface {
	Get(ctx context.Context, userID, key string) (string, bool, error)
	Set(ctx context.Context, userID, key, value string) error
}

// Handler owns the user preference endpoints.
type Handler struct {
	Prefs Prefs
	Log   *zap.Logger
}

func NewHandler(prefs Prefs, logger *zap.Logger) *Handler {
	return &Handler{Prefs: prefs, Log: logger}
}

type themeBody struct {
	Theme string `json:"theme"`
}

// ServeTheme handles GET /api/prefs/theme.
func (h *Handler) ServeTheme(w http.ResponseWriter, r *http.Request) {
	const op = "settings.ServeTheme"
	u, err := shared.Caller(r)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	ctx, cancel := shared.Ctx(r)
	defer cancel()

	theme, ok, err := h.Prefs.Get(ctx, u.ID, models.PrefTheme)
	if err != nil {
		uierrors.Write(w, h.Log, apperr.FromStore(op, err))
		return
	}
	if !ok || !themes[theme] {
		theme = DefaultTheme
	}
	shared.JSON(w, http.StatusOK, themeBody{Theme: theme})
}

// HandleSetTheme handles PUT /api/prefs/theme.
func (h *Handler) HandleSetTheme(w http.ResponseWriter, r *http.Request) {
	const op = "settings.HandleSetTheme"
	u, err := shared.Caller(r)
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	var in themeBody
	if err := shared.Decode(w, r, &in); err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	theme := strings.ToLower(strings.TrimSpace(in.Theme))
	if !themes[theme] {
		uierrors.Write(w, h.Log, apperr.New(apperr.InvalidArgument, op, "theme must be light, dark or system"))
		return
	}

	ctx, cancel := shared.Ctx(r)
	defer cancel()
	if err := h.Prefs.Set(ctx, u.ID, models.PrefTheme, theme); err != nil {
		uierrors.Write(w, h.Log, apperr.FromStore(op, err))
		return
	}
	shared.JSON(w, http.StatusOK, themeBody{Theme: theme})
}

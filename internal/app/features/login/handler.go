// internal/app/features/login/handler.go
package login

import (
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves the development sign-in. It trusts whatever identity the
// caller names, so it is only mounted when env is "dev".
type Handler struct {
	Flow *Flow
	Log  *zap.Logger
}

func NewHandler(flow *Flow, logger *zap.Logger) *Handler {
	return &Handler{Flow: flow, Log: logger}
}

type devLoginRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Invite string `json:"invite"`
}

// ServeDevLogin handles POST /login/dev.
//
//	{ "email":"alice@example.com", "name":"Alice", "invite":"<token>" }
//
// The id defaults to "dev:" plus the folded email.
func (h *Handler) ServeDevLogin(w http.ResponseWriter, r *http.Request) {
	const op = "login.ServeDevLogin"
	var req devLoginRequest
	if err := shared.Decode(w, r, &req); err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	email := normalize.Email(req.Email)
	if !inputval.IsValidEmail(email) {
		uierrors.Write(w, h.Log, apperr.New(apperr.InvalidArgument, op, "a valid email is required"))
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = "dev:" + email
	}

	res, err := h.Flow.Complete(w, r, models.Identity{
		ID:          id,
		Email:       email,
		DisplayName: req.Name,
		Provider:    "dev",
	}, strings.TrimSpace(req.Invite))
	if err != nil {
		uierrors.Write(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, res)
}

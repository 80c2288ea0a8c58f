// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"go.uber.org/zap"
)

// envelope is the body of every failed API response:
//
//	{ "error": { "code": "conflict", "message": "…" } }
type envelope struct {
	Error detail `json:"error"`
}

type detail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Step    string `json:"step,omitempty"`
}

// WriteStatus writes an error body with an explicit status and code.
func WriteStatus(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: detail{Code: code, Message: msg}})
}

// Write maps err to its status code and writes the error body. Server-side
// failures are logged and their details withheld from the client.
func Write(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	d := detail{Code: string(kind), Step: apperr.StepOf(err)}
	if status >= http.StatusInternalServerError {
		if log != nil {
			log.Error("request failed", zap.Error(err), zap.String("kind", string(kind)))
		}
		d.Message = http.StatusText(status)
	} else {
		d.Message = message(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: d})
}

// message returns the outermost classified message, or the error text.
func message(err error) string {
	var e *apperr.Error
	if stderrors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}

// Handler serves the router's fallback responses.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// NotFound answers unknown routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	WriteStatus(w, http.StatusNotFound, string(apperr.NotFound), "no such route")
}

// MethodNotAllowed answers known routes hit with the wrong verb.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteStatus(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not supported here")
}

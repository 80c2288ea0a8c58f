// Package apperr defines the error kinds shared by the core services.
//
// Stores return their own sentinel errors; services translate them into an
// *Error carrying a Kind so the HTTP layer can pick a status code without
// knowing about storage.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	Internal        Kind = "internal"
	NotFound        Kind = "not_found"
	Forbidden       Kind = "forbidden"
	Conflict        Kind = "conflict"
	Expired         Kind = "expired"
	InvalidArgument Kind = "invalid_argument"
	Unavailable     Kind = "unavailable"
)

// Error is a classified failure. Step names the failed step of a
// multi-step operation; RollbackErr is set when undoing earlier steps also
// failed.
type Error struct {
	Kind        Kind
	Op          string
	Step        string
	Msg         string
	Err         error
	RollbackErr error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	out := msg
	if e.Step != "" {
		out = fmt.Sprintf("step %q: %s", e.Step, out)
	}
	if e.Op != "" {
		out = e.Op + ": " + out
	}
	if e.RollbackErr != nil {
		out += fmt.Sprintf(" (rollback failed: %v)", e.RollbackErr)
	}
	return out
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, apperr.ErrConflict) and friends match on kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Step == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind markers for errors.Is.
var (
	ErrNotFound        = &Error{Kind: NotFound}
	ErrForbidden       = &Error{Kind: Forbidden}
	ErrConflict        = &Error{Kind: Conflict}
	ErrExpired         = &Error{Kind: Expired}
	ErrInvalidArgument = &Error{Kind: InvalidArgument}
	ErrUnavailable     = &Error{Kind: Unavailable}
)

// New builds a classified error with a message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// StepFailed reports the failure of one step of a multi-step operation. The
// kind of cause is preserved when it is already classified.
func StepFailed(op, step string, cause, rollbackErr error) *Error {
	return &Error{
		Kind:        KindOf(cause),
		Op:          op,
		Step:        step,
		Err:         cause,
		RollbackErr: rollbackErr,
	}
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == "" {
			return Internal
		}
		return e.Kind
	}
	return Internal
}

// StepOf returns the failed step named in err's chain, if any.
func StepOf(err error) string {
	var e *Error
	for errors.As(err, &e) {
		if e.Step != "" {
			return e.Step
		}
		err = e.Err
	}
	return ""
}

// IsNotFound reports whether err is classified NotFound.
func IsNotFound(err error) bool { return KindOf(err) == NotFound }

// IsForbidden reports whether err is classified Forbidden.
func IsForbidden(err error) bool { return KindOf(err) == Forbidden }

// IsConflict reports whether err is classified Conflict.
func IsConflict(err error) bool { return KindOf(err) == Conflict }

// IsExpired reports whether err is classified Expired.
func IsExpired(err error) bool { return KindOf(err) == Expired }

// HTTPStatus maps a kind to a response status code.
func HTTPStatus(k Kind) int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	case Expired:
		return http.StatusGone
	case InvalidArgument:
		return http.StatusBadRequest
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

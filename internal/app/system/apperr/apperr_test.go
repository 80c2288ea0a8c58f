package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), Internal},
		{"classified", New(Conflict, "send", "already pending"), Conflict},
		{"wrapped", fmt.Errorf("outer: %w", New(Expired, "accept", "past due")), Expired},
		{"step keeps cause kind", StepFailed("accept", "record association", New(Forbidden, "", "x"), nil), Forbidden},
		{"step with plain cause", StepFailed("accept", "record association", errors.New("io"), nil), Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", New(NotFound, "get", "workspace not found"))
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected errors.Is to match ErrNotFound")
	}
	if errors.Is(err, ErrConflict) {
		t.Error("did not expect a match on ErrConflict")
	}
}

func TestStepFailedMessage(t *testing.T) {
	err := StepFailed("accept invitation", "record association", errors.New("write failed"), errors.New("undo failed"))
	want := `accept invitation: step "record association": write failed (rollback failed: undo failed)`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if StepOf(fmt.Errorf("x: %w", err)) != "record association" {
		t.Errorf("StepOf() = %q", StepOf(err))
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		NotFound:        http.StatusNotFound,
		Forbidden:       http.StatusForbidden,
		Conflict:        http.StatusConflict,
		Expired:         http.StatusGone,
		InvalidArgument: http.StatusBadRequest,
		Unavailable:     http.StatusServiceUnavailable,
		Internal:        http.StatusInternalServerError,
	}
	for k, want := range cases {
		if got := HTTPStatus(k); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", k, got, want)
		}
	}
}

func TestFromStore(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"no documents", mongo.ErrNoDocuments, NotFound},
		{"deadline", fmt.Errorf("find: %w", context.DeadlineExceeded), Unavailable},
		{"disconnected", mongo.ErrClientDisconnected, Unavailable},
		{"classified passes through", New(Conflict, "x", "dup"), Conflict},
		{"other", errors.New("boom"), Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(FromStore("op", tt.err)); got != tt.want {
				t.Errorf("KindOf = %q, want %q", got, tt.want)
			}
		})
	}
}

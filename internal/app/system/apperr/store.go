package apperr

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// FromStore classifies an error coming back from a store after the caller
// has handled the store's own sentinels. Driver connectivity problems and
// deadlines become Unavailable; anything else is Internal. Already
// classified errors pass through.
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return Wrap(NotFound, op, err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, mongo.ErrClientDisconnected),
		mongo.IsNetworkError(err),
		mongo.IsTimeout(err):
		return Wrap(Unavailable, op, err)
	case errors.Is(err, context.Canceled):
		return Wrap(Unavailable, op, err)
	}
	return Wrap(Internal, op, err)
}

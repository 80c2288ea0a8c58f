// internal/app/features/content/util.go
package content

import (
	"net/http"

	uierrors "github.com/dalemusser/taskhub/internal/app/features/errors"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/activectx"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func writeErr(w http.ResponseWriter, log *zap.Logger, err error) {
	uierrors.Write(w, log, err)
}

// categoryRef reads an optional category_id. A present empty string means
// "no category".
func categoryRef(raw *string) (id *primitive.ObjectID, clear bool, err error) {
	if raw == nil {
		return nil, false, nil
	}
	if *raw == "" {
		return nil, true, nil
	}
	id, err = shared.OptionalObjectID("category_id", *raw)
	return id, false, err
}

func moveTarget(sess *activectx.Session, raw string) (primitive.ObjectID, error) {
	t, ok := activectx.ParseTarget(raw)
	if !ok || raw == "" {
		return primitive.NilObjectID, apperr.New(apperr.InvalidArgument, "move", "workspace_id is required")
	}
	if t.IsPersonal() {
		return sess.PersonalWorkspace(), nil
	}
	return t.WorkspaceID, nil
}

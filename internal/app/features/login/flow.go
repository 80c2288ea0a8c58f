// internal/app/features/login/flow.go
package login

import (
	"context"
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/activectx"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/auditlog"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Profiles creates or refreshes the profile of a signed-in identity.
type Profiles interface {
	Upsert(ctx context.Context, id models.Identity) (models.User, error)
}

// InviteAcceptor accepts an invitation carried by an invite link.
type InviteAcceptor interface {
	AcceptByToken(ctx context.Context, token, userID string) (primitive.ObjectID, error)
}

// Flow finishes a sign-in once an identity provider has vouched for the
// person. Every provider ends here.
type Flow struct {
	Users    Profiles
	Sessions *auth.SessionManager
	Contexts *activectx.Manager
	Invites  InviteAcceptor
	Audit    *auditlog.Logger
	Log      *zap.Logger
}

// Result is what a completed sign-in reports to the client.
type Result struct {
	User        models.User        `json:"user"`
	WorkspaceID primitive.ObjectID `json:"workspace_id"`
	Role        models.Role        `json:"role"`

	// Joined is set when an invite link was accepted during sign-in.
	Joined *primitive.ObjectID `json:"joined_workspace_id,omitempty"`
	// InviteError carries the error code when the invite link could not be
	// accepted. Sign-in itself still succeeds.
	InviteError string `json:"invite_error,omitempty"`
}

// Complete upserts the profile, writes the session cookie, opens the
// active-context session and accepts inviteToken when one is given.
func (f *Flow) Complete(w http.ResponseWriter, r *http.Request, id models.Identity, inviteToken string) (Result, error) {
	const op = "login.Complete"
	ctx, cancel := shared.Ctx(r)
	defer cancel()

	user, err := f.Users.Upsert(ctx, id)
	if err != nil {
		f.Audit.LoginFailed(ctx, r, id.Provider, "profile")
		return Result{}, apperr.FromStore(op, err)
	}

	su, err := f.Sessions.SignIn(w, r, auth.SessionUser{
		ID:       user.ID,
		Name:     user.DisplayName,
		Email:    user.Email,
		PhotoURL: user.PhotoURL,
	})
	if err != nil {
		f.Audit.LoginFailed(ctx, r, id.Provider, "session")
		return Result{}, apperr.Wrap(apperr.Internal, op, err)
	}

	sess, err := f.Contexts.Open(ctx, activectx.OpenInput{
		Token:     su.Token,
		User:      user,
		IP:        shared.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{User: user}
	if inviteToken != "" && f.Invites != nil {
		wsID, err := f.Invites.AcceptByToken(ctx, inviteToken, user.ID)
		if err != nil {
			f.Log.Info("invite link not accepted at sign-in",
				zap.String("user_id", user.ID), zap.Error(err))
			res.InviteError = string(apperr.KindOf(err))
		} else {
			res.Joined = &wsID
			if err := sess.SwitchTo(ctx, activectx.Shared(wsID)); err != nil {
				f.Log.Warn("could not switch into joined workspace",
					zap.String("user_id", user.ID),
					zap.String("workspace_id", wsID.Hex()),
					zap.Error(err))
			}
		}
	}

	_, res.WorkspaceID, res.Role = sess.Current()
	f.Audit.LoginSuccess(ctx, r, user.ID, id.Provider)
	f.Log.Info("user signed in",
		zap.String("user_id", user.ID),
		zap.String("provider", id.Provider))
	return res, nil
}

package events_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/features/events"
	"github.com/dalemusser/taskhub/internal/app/features/shared"
	"github.com/dalemusser/taskhub/internal/app/services/activectx"
	"github.com/dalemusser/taskhub/internal/app/services/content"
	"github.com/dalemusser/taskhub/internal/app/services/invitations"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sse struct {
	name string
	data string
}

// subscribe connects to the stream as u and returns the parsed events.
func subscribe(t *testing.T, h *events.Handler, u testutil.TestUser) <-chan sse {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeEvents(w, testutil.WithUser(r, u))
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	out := make(chan sse, 64)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		var cur sse
		for sc.Scan() {
			line := sc.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				cur.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				cur.data = strings.TrimPrefix(line, "data: ")
			case line == "" && cur.name != "":
				out <- cur
				cur = sse{}
			}
		}
	}()
	return out
}

// until returns the first event named name for which match holds.
func until(t *testing.T, ch <-chan sse, name string, match func(data string) bool) sse {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				t.Fatalf("stream closed while waiting for %q", name)
			}
			if e.name == name && (match == nil || match(e.data)) {
				return e
			}
		case <-deadline:
			t.Fatalf("no %q event", name)
		}
	}
}

func TestServeEvents(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	alice := env.User(t, "alice", "Alice")
	bob := env.User(t, "bob", "Bob")
	ws, err := env.Workspaces.Create(ctx, alice, "Road Trip", "")
	require.NoError(t, err)

	h := events.NewHandler(&shared.Sessions{Contexts: env.Contexts, Users: env.DB.Users(), Log: env.Log}, env.Log)
	u := testutil.TestUser{ID: alice.ID, Name: alice.DisplayName, Email: alice.Email, Token: "tok-alice"}
	stream := subscribe(t, h, u)

	first := until(t, stream, events.EventSnapshot, nil)
	var snap struct {
		Context     shared.ContextView  `json:"context"`
		Invitations *invitations.Notice `json:"invitations"`
	}
	require.NoError(t, json.Unmarshal([]byte(first.data), &snap))
	assert.True(t, snap.Context.Personal)
	require.NotNil(t, snap.Invitations)
	assert.Zero(t, snap.Invitations.Count)

	sess, ok := env.Contexts.Get(u.Token)
	require.True(t, ok)
	require.NoError(t, sess.SwitchTo(ctx, activectx.Shared(ws.ID)))
	until(t, stream, activectx.KindContextChanged, func(data string) bool {
		return strings.Contains(data, ws.ID.Hex()) && strings.Contains(data, `"role":"owner"`)
	})

	_, err = env.Content.CreateTask(ctx, content.Actor{ID: alice.ID, Name: "Alice"}, ws.ID, content.TaskInput{Title: "Book the ferry"})
	require.NoError(t, err)
	until(t, stream, activectx.KindScope, func(data string) bool {
		return strings.Contains(data, "Book the ferry")
	})

	bobWS, err := env.Workspaces.Create(ctx, bob, "Bob's Team", "")
	require.NoError(t, err)
	_, err = env.Invitations.Send(ctx, invitations.SendInput{
		InviterID: bob.ID, Target: alice.Email, WorkspaceID: &bobWS.ID, Role: string(models.RoleMember),
	})
	require.NoError(t, err)
	until(t, stream, events.EventInvitations, func(data string) bool {
		var n invitations.Notice
		return json.Unmarshal([]byte(data), &n) == nil && n.Count == 1 && n.Badge == "1"
	})

	require.NoError(t, env.Contexts.End(ctx, u.Token))
	until(t, stream, events.EventEnd, nil)
}

func TestServeEvents_NotSignedIn(t *testing.T) {
	env := testutil.NewEnv(t)
	h := events.NewHandler(&shared.Sessions{Contexts: env.Contexts, Users: env.DB.Users(), Log: env.Log}, env.Log)

	rec := testutil.NewRecorder()
	h.ServeEvents(rec, testutil.NewRequest("GET", "/api/events"))

	rec.AssertStatus(t, http.StatusForbidden)
}

package content_test

import (
	"context"
	"strings"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/services/content"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	env          *testutil.Env
	ws           models.Workspace
	owner, admin content.Actor
	member       content.Actor
	outsider     content.Actor
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	alice := env.User(t, "alice", "Alice")
	bob := env.User(t, "bob", "Bob")
	carol := env.User(t, "carol", "Carol")
	env.User(t, "dave", "Dave")
	ws, err := env.Workspaces.Create(context.Background(), alice, "Team", "")
	require.NoError(t, err)
	env.Join(t, ws.ID, alice, bob, models.RoleAdmin)
	env.Join(t, ws.ID, alice, carol, models.RoleMember)
	return fixture{
		env:      env,
		ws:       ws,
		owner:    content.Actor{ID: "alice", Name: "Alice"},
		admin:    content.Actor{ID: "bob", Name: "Bob"},
		member:   content.Actor{ID: "carol", Name: "Carol"},
		outsider: content.Actor{ID: "dave", Name: "Dave"},
	}
}

func ptr[T any](v T) *T { return &v }

func TestCreateTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.env.Content.CreateTask(ctx, f.member, f.ws.ID, content.TaskInput{
		Title:    "  Write report  ",
		Priority: "HIGH",
	})
	require.NoError(t, err)
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, "high", task.Priority)
	assert.Equal(t, "carol", task.CreatedBy)
	assert.Equal(t, "Carol", task.CreatedByName)

	_, err = f.env.Content.CreateTask(ctx, f.member, f.ws.ID, content.TaskInput{Title: " "})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = f.env.Content.CreateTask(ctx, f.member, f.ws.ID, content.TaskInput{Title: "x", Priority: "urgent"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = f.env.Content.CreateTask(ctx, f.outsider, f.ws.ID, content.TaskInput{Title: "x"})
	assert.True(t, apperr.IsForbidden(err))
}

func TestCreateTask_CategoryMustBelongToWorkspace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, err := f.env.DB.Users().GetByID(ctx, "alice")
	require.NoError(t, err)
	other, err := f.env.Workspaces.Create(ctx, alice, "Other", "")
	require.NoError(t, err)

	foreign, err := f.env.DB.Categories().ListByWorkspace(ctx, other.ID)
	require.NoError(t, err)
	require.NotEmpty(t, foreign)

	_, err = f.env.Content.CreateTask(ctx, f.owner, f.ws.ID, content.TaskInput{Title: "x", CategoryID: &foreign[0].ID})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	missing := primitive.NewObjectID()
	_, err = f.env.Content.CreateTask(ctx, f.owner, f.ws.ID, content.TaskInput{Title: "x", CategoryID: &missing})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestUpdateTask_AuthorOrAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, err := f.env.DB.Users().GetByID(ctx, "alice")
	require.NoError(t, err)
	dave, err := f.env.DB.Users().GetByID(ctx, "dave")
	require.NoError(t, err)
	f.env.Join(t, f.ws.ID, alice, dave, models.RoleMember)

	task, err := f.env.Content.CreateTask(ctx, f.member, f.ws.ID, content.TaskInput{Title: "Mine"})
	require.NoError(t, err)

	_, err = f.env.Content.UpdateTask(ctx, f.outsider, task.ID, content.TaskPatch{Completed: ptr(true)})
	assert.True(t, apperr.IsForbidden(err), "another member may not edit")

	got, err := f.env.Content.UpdateTask(ctx, f.admin, task.ID, content.TaskPatch{Completed: ptr(true), Order: ptr(3)})
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.Equal(t, 3, got.Order)
	assert.Equal(t, "bob", got.UpdatedBy)

	got, err = f.env.Content.UpdateTask(ctx, f.member, task.ID, content.TaskPatch{Title: ptr("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.True(t, got.Completed)

	require.NoError(t, f.env.Content.DeleteTask(ctx, f.member, task.ID))
	_, err = f.env.Content.UpdateTask(ctx, f.member, task.ID, content.TaskPatch{})
	assert.True(t, apperr.IsNotFound(err))
}

func TestUpdateTask_ClearCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cats, err := f.env.DB.Categories().ListByWorkspace(ctx, f.ws.ID)
	require.NoError(t, err)

	task, err := f.env.Content.CreateTask(ctx, f.owner, f.ws.ID, content.TaskInput{Title: "x", CategoryID: &cats[0].ID})
	require.NoError(t, err)
	require.NotNil(t, task.CategoryID)

	got, err := f.env.Content.UpdateTask(ctx, f.owner, task.ID, content.TaskPatch{ClearCategory: true})
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)
}

func TestMoveTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, err := f.env.DB.Users().GetByID(ctx, "alice")
	require.NoError(t, err)
	target, err := f.env.Workspaces.Create(ctx, alice, "Target", "")
	require.NoError(t, err)
	cats, err := f.env.DB.Categories().ListByWorkspace(ctx, f.ws.ID)
	require.NoError(t, err)

	task, err := f.env.Content.CreateTask(ctx, f.owner, f.ws.ID, content.TaskInput{Title: "Travel", CategoryID: &cats[0].ID})
	require.NoError(t, err)

	_, err = f.env.Content.MoveTask(ctx, f.admin, task.ID, target.ID)
	assert.True(t, apperr.IsForbidden(err), "the actor must belong to the target")

	moved, err := f.env.Content.MoveTask(ctx, f.owner, task.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, target.ID, moved.WorkspaceID)
	assert.NotEqual(t, task.ID, moved.ID)
	assert.Nil(t, moved.CategoryID)
	assert.Equal(t, "Travel", moved.Title)

	src, err := f.env.Content.Snapshot(ctx, "alice", f.ws.ID)
	require.NoError(t, err)
	assert.Empty(t, src.Tasks)

	dst, err := f.env.Content.Snapshot(ctx, "alice", target.ID)
	require.NoError(t, err)
	require.Len(t, dst.Tasks, 1)
	assert.Equal(t, moved.ID, dst.Tasks[0].ID)
}

func TestNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.env.Content.CreateNote(ctx, f.member, f.ws.ID, content.NoteInput{
		Title: "Minutes",
		Body:  `<p>hello</p><script>alert(1)</script>`,
	})
	require.NoError(t, err)
	assert.Contains(t, n.Body, "<p>hello</p>")
	assert.NotContains(t, n.Body, "script")

	_, err = f.env.Content.CreateNote(ctx, f.member, f.ws.ID, content.NoteInput{
		Title: "Huge",
		Body:  strings.Repeat("a", 20001),
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	got, err := f.env.Content.UpdateNote(ctx, f.owner, n.ID, content.NotePatch{Pinned: ptr(true)})
	require.NoError(t, err)
	assert.True(t, got.Pinned)

	assert.True(t, apperr.IsForbidden(f.env.Content.DeleteNote(ctx, f.outsider, n.ID)))
	require.NoError(t, f.env.Content.DeleteNote(ctx, f.member, n.ID))

	snap, err := f.env.Content.Snapshot(ctx, "carol", f.ws.ID)
	require.NoError(t, err)
	assert.Empty(t, snap.Notes)
}

func TestCategories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.env.Content.CreateCategory(ctx, f.member, f.ws.ID, content.CategoryInput{Name: "Road Trip!", Color: "#f00"})
	require.NoError(t, err)
	assert.Equal(t, "road-trip", c.Key)

	_, err = f.env.Content.CreateCategory(ctx, f.member, f.ws.ID, content.CategoryInput{Name: "road trip"})
	assert.True(t, apperr.IsConflict(err), "same key in one workspace, got %v", err)

	_, err = f.env.Content.CreateCategory(ctx, f.member, f.ws.ID, content.CategoryInput{Name: "!!!"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	got, err := f.env.Content.UpdateCategory(ctx, f.member, c.ID, content.CategoryPatch{Name: ptr("Vacation")})
	require.NoError(t, err)
	assert.Equal(t, "Vacation", got.Name)
	assert.Equal(t, "road-trip", got.Key, "the key stays fixed")
}

func TestDeleteCategory_DetachesTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.env.Content.CreateCategory(ctx, f.owner, f.ws.ID, content.CategoryInput{Name: "Errands"})
	require.NoError(t, err)
	task, err := f.env.Content.CreateTask(ctx, f.owner, f.ws.ID, content.TaskInput{Title: "Groceries", CategoryID: &c.ID})
	require.NoError(t, err)

	require.NoError(t, f.env.Content.DeleteCategory(ctx, f.owner, c.ID))

	got, err := f.env.DB.Tasks().GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)

	snap, err := f.env.Content.Snapshot(ctx, "alice", f.ws.ID)
	require.NoError(t, err)
	for _, cat := range snap.Categories {
		assert.NotEqual(t, c.ID, cat.ID)
	}
}

func TestDeleteCategory_DefaultIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cats, err := f.env.DB.Categories().ListByWorkspace(ctx, f.ws.ID)
	require.NoError(t, err)
	require.Len(t, cats, 3)

	assert.True(t, apperr.IsConflict(f.env.Content.DeleteCategory(ctx, f.owner, cats[0].ID)))
}

func TestSnapshot_RequiresMembership(t *testing.T) {
	f := newFixture(t)
	_, err := f.env.Content.Snapshot(context.Background(), "dave", f.ws.ID)
	assert.True(t, apperr.IsForbidden(err))
}

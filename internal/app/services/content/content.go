// Package content manages the tasks, notes and categories scoped to a
// workspace. Every operation requires an active membership; edits and
// deletes follow workspacepolicy.
package content

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/dalemusser/taskhub/internal/app/policy/workspacepolicy"
	categorystore "github.com/dalemusser/taskhub/internal/app/store/categories"
	notestore "github.com/dalemusser/taskhub/internal/app/store/notes"
	taskstore "github.com/dalemusser/taskhub/internal/app/store/tasks"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/dalemusser/taskhub/internal/app/system/realtime"
	"github.com/dalemusser/taskhub/internal/app/system/txn"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type TaskStore interface {
	Create(ctx context.Context, t models.Task) (models.Task, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Task, error)
	Replace(ctx context.Context, t models.Task) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	ListByWorkspace(ctx context.Context, wsID primitive.ObjectID) ([]models.Task, error)
	UnsetCategory(ctx context.Context, wsID, categoryID primitive.ObjectID) (int64, error)
}

type NoteStore interface {
	Create(ctx context.Context, n models.Note) (models.Note, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Note, error)
	Replace(ctx context.Context, n models.Note) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	ListByWorkspace(ctx context.Context, wsID primitive.ObjectID) ([]models.Note, error)
}

type CategoryStore interface {
	Create(ctx context.Context, c models.Category) (models.Category, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Category, error)
	Replace(ctx context.Context, c models.Category) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	ListByWorkspace(ctx context.Context, wsID primitive.ObjectID) ([]models.Category, error)
}

// Roles resolves a user's active role in a workspace ("" for none).
type Roles interface {
	GetRole(ctx context.Context, userID string, wsID primitive.ObjectID) (models.Role, error)
}

var (
	_ TaskStore     = (*taskstore.Store)(nil)
	_ NoteStore     = (*notestore.Store)(nil)
	_ CategoryStore = (*categorystore.Store)(nil)
)

// Actor is the user performing a change.
type Actor struct {
	ID   string
	Name string
}

// Scope is everything scoped to one workspace.
type Scope struct {
	WorkspaceID primitive.ObjectID `json:"workspace_id"`
	Tasks       []models.Task      `json:"tasks"`
	Notes       []models.Note      `json:"notes"`
	Categories  []models.Category  `json:"categories"`
}

// Service is the scoped-content service.
type Service struct {
	tasks TaskStore
	notes NoteStore
	cats  CategoryStore
	roles Roles
	tx    txn.Runner
	pub   realtime.Publisher
	log   *zap.Logger
	now   func() time.Time
}

func New(tasks TaskStore, notes NoteStore, cats CategoryStore, roles Roles, tx txn.Runner, pub realtime.Publisher, log *zap.Logger) *Service {
	if pub == nil {
		pub = realtime.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		tasks: tasks, notes: notes, cats: cats, roles: roles, tx: tx, pub: pub, log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Tests use it.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// role returns the actor's role, refusing non-members.
func (s *Service) role(ctx context.Context, op, userID string, wsID primitive.ObjectID) (models.Role, error) {
	r, err := s.roles.GetRole(ctx, userID, wsID)
	if err != nil {
		return "", err
	}
	if r == "" {
		return "", apperr.New(apperr.Forbidden, op, "not a member of this workspace")
	}
	return r, nil
}

// Snapshot loads the whole scope of wsID.
func (s *Service) Snapshot(ctx context.Context, userID string, wsID primitive.ObjectID) (Scope, error) {
	const op = "content.Snapshot"
	if _, err := s.role(ctx, op, userID, wsID); err != nil {
		return Scope{}, err
	}
	return s.Load(ctx, wsID)
}

// Load reads the scope of wsID without a membership check. The caller has
// already verified access.
func (s *Service) Load(ctx context.Context, wsID primitive.ObjectID) (Scope, error) {
	const op = "content.Load"
	sc := Scope{WorkspaceID: wsID}
	var err error
	if sc.Tasks, err = s.tasks.ListByWorkspace(ctx, wsID); err != nil {
		return Scope{}, apperr.FromStore(op, err)
	}
	if sc.Notes, err = s.notes.ListByWorkspace(ctx, wsID); err != nil {
		return Scope{}, apperr.FromStore(op, err)
	}
	if sc.Categories, err = s.cats.ListByWorkspace(ctx, wsID); err != nil {
		return Scope{}, apperr.FromStore(op, err)
	}
	return sc, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Tasks                                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// TaskInput is a new task.
type TaskInput struct {
	Title       string
	Description string
	Priority    string
	CategoryID  *primitive.ObjectID
	DueAt       *time.Time
	Order       int
}

// TaskPatch is a task update; nil fields are left alone. ClearCategory
// removes the category.
type TaskPatch struct {
	Title         *string
	Description   *string
	Priority      *string
	CategoryID    *primitive.ObjectID
	ClearCategory bool
	Completed     *bool
	DueAt         *time.Time
	Order         *int
}

func cleanTitle(op, t string) (string, error) {
	t = htmlsanitize.PlainText(t)
	if t == "" {
		return "", apperr.New(apperr.InvalidArgument, op, "title is required")
	}
	if !inputval.WithinLimit(t, inputval.MaxTitle) {
		return "", apperr.New(apperr.InvalidArgument, op, "title is too long")
	}
	return t, nil
}

func cleanPriority(op, p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	switch p {
	case "", "low", "medium", "high":
		return p, nil
	}
	return "", apperr.New(apperr.InvalidArgument, op, "priority must be low, medium or high")
}

// checkCategory verifies that id names a category of wsID.
func (s *Service) checkCategory(ctx context.Context, op string, wsID primitive.ObjectID, id *primitive.ObjectID) error {
	if id == nil {
		return nil
	}
	c, err := s.cats.GetByID(ctx, *id)
	if errors.Is(err, categorystore.ErrNotFound) || (err == nil && c.WorkspaceID != wsID) {
		return apperr.New(apperr.InvalidArgument, op, "unknown category")
	}
	return apperr.FromStore(op, err)
}

func (s *Service) CreateTask(ctx context.Context, a Actor, wsID primitive.ObjectID, in TaskInput) (models.Task, error) {
	const op = "content.CreateTask"
	if _, err := s.role(ctx, op, a.ID, wsID); err != nil {
		return models.Task{}, err
	}
	title, err := cleanTitle(op, in.Title)
	if err != nil {
		return models.Task{}, err
	}
	prio, err := cleanPriority(op, in.Priority)
	if err != nil {
		return models.Task{}, err
	}
	desc := htmlsanitize.PlainText(in.Description)
	if !inputval.WithinLimit(desc, inputval.MaxBody) {
		return models.Task{}, apperr.New(apperr.InvalidArgument, op, "description is too long")
	}
	if err := s.checkCategory(ctx, op, wsID, in.CategoryID); err != nil {
		return models.Task{}, err
	}

	t, err := s.tasks.Create(ctx, models.Task{
		WorkspaceID:   wsID,
		CategoryID:    in.CategoryID,
		Title:         title,
		Description:   desc,
		Priority:      prio,
		DueAt:         in.DueAt,
		Order:         in.Order,
		CreatedBy:     a.ID,
		CreatedByName: a.Name,
	})
	if err != nil {
		return models.Task{}, apperr.FromStore(op, err)
	}
	s.pub.Publish(realtime.TaskEvent(realtime.Added, t))
	return t, nil
}

// loadTask fetches a task and checks the actor's edit right on it.
func (s *Service) loadTask(ctx context.Context, op string, a Actor, id primitive.ObjectID) (models.Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if errors.Is(err, taskstore.ErrNotFound) {
		return models.Task{}, apperr.Wrap(apperr.NotFound, op, err)
	}
	if err != nil {
		return models.Task{}, apperr.FromStore(op, err)
	}
	r, err := s.role(ctx, op, a.ID, t.WorkspaceID)
	if err != nil {
		return models.Task{}, err
	}
	if !workspacepolicy.CanEditTask(r, a.ID, t) {
		return models.Task{}, apperr.New(apperr.Forbidden, op, "only the author or a workspace admin may change this task")
	}
	return t, nil
}

func (s *Service) UpdateTask(ctx context.Context, a Actor, id primitive.ObjectID, p TaskPatch) (models.Task, error) {
	const op = "content.UpdateTask"
	t, err := s.loadTask(ctx, op, a, id)
	if err != nil {
		return models.Task{}, err
	}
	if p.Title != nil {
		if t.Title, err = cleanTitle(op, *p.Title); err != nil {
			return models.Task{}, err
		}
	}
	if p.Description != nil {
		t.Description = htmlsanitize.PlainText(*p.Description)
		if !inputval.WithinLimit(t.Description, inputval.MaxBody) {
			return models.Task{}, apperr.New(apperr.InvalidArgument, op, "description is too long")
		}
	}
	if p.Priority != nil {
		if t.Priority, err = cleanPriority(op, *p.Priority); err != nil {
			return models.Task{}, err
		}
	}
	if p.ClearCategory {
		t.CategoryID = nil
	} else if p.CategoryID != nil {
		if err := s.checkCategory(ctx, op, t.WorkspaceID, p.CategoryID); err != nil {
			return models.Task{}, err
		}
		t.CategoryID = p.CategoryID
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.DueAt != nil {
		t.DueAt = p.DueAt
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	t.UpdatedBy = a.ID
	t.UpdatedAt = s.now()

	if err := s.tasks.Replace(ctx, t); err != nil {
		if errors.Is(err, taskstore.ErrNotFound) {
			return models.Task{}, apperr.Wrap(apperr.NotFound, op, err)
		}
		return models.Task{}, apperr.FromStore(op, err)
	}
	s.pub.Publish(realtime.TaskEvent(realtime.Modified, t))
	return t, nil
}

func (s *Service) DeleteTask(ctx context.Context, a Actor, id primitive.ObjectID) error {
	const op = "content.DeleteTask"
	t, err := s.loadTask(ctx, op, a, id)
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		if errors.Is(err, taskstore.ErrNotFound) {
			return apperr.Wrap(apperr.NotFound, op, err)
		}
		return apperr.FromStore(op, err)
	}
	s.pub.Publish(realtime.TaskEvent(realtime.Removed, t))
	return nil
}

// MoveTask moves a task into another workspace the actor belongs to. The
// copy is inserted first and the original deleted second; if the delete
// fails the copy is removed again. The category is dropped since
// categories are per workspace.
func (s *Service) MoveTask(ctx context.Context, a Actor, id, target primitive.ObjectID) (models.Task, error) {
	const op = "content.MoveTask"
	src, err := s.loadTask(ctx, op, a, id)
	if err != nil {
		return models.Task{}, err
	}
	if src.WorkspaceID == target {
		return src, nil
	}
	if _, err := s.role(ctx, op, a.ID, target); err != nil {
		return models.Task{}, err
	}

	var moved models.Task
	err = s.tx.Run(ctx, func(ctx context.Context) error {
		steps := txn.NewSteps(op, s.log)
		if err := steps.Do(ctx, "insert into target", func(ctx context.Context) error {
			cp := src
			cp.ID = primitive.NilObjectID
			cp.WorkspaceID = target
			cp.CategoryID = nil
			cp.UpdatedBy = a.ID
			var err error
			moved, err = s.tasks.Create(ctx, cp)
			return err
		}, func(ctx context.Context) error {
			return s.tasks.Delete(ctx, moved.ID)
		}); err != nil {
			return err
		}
		return steps.Do(ctx, "delete from source", func(ctx context.Context) error {
			return s.tasks.Delete(ctx, src.ID)
		}, nil)
	})
	if err != nil {
		return models.Task{}, apperr.FromStore(op, err)
	}
	s.pub.Publish(
		realtime.TaskEvent(realtime.Removed, src),
		realtime.TaskEvent(realtime.Added, moved),
	)
	return moved, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Notes                                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

type NoteInput struct {
	Title  string
	Body   string
	Pinned bool
}

type NotePatch struct {
	Title  *string
	Body   *string
	Pinned *bool
}

func cleanBody(op, b string) (string, error) {
	b = htmlsanitize.Sanitize(b)
	if !inputval.WithinLimit(b, inputval.MaxBody) {
		return "", apperr.New(apperr.InvalidArgument, op, "body is too long")
	}
	return b, nil
}

func (s *Service) CreateNote(ctx context.Context, a Actor, wsID primitive.ObjectID, in NoteInput) (models.Note, error) {
	const op = "content.CreateNote"
	if _, err := s.role(ctx, op, a.ID, wsID); err != nil {
		return models.Note{}, err
	}
	title, err := cleanTitle(op, in.Title)
	if err != nil {
		return models.Note{}, err
	}
	body, err := cleanBody(op, in.Body)
	if err != nil {
		return models.Note{}, err
	}
	n, err := s.notes.Create(ctx, models.Note{
		WorkspaceID:   wsID,
		Title:         title,
		Body:          body,
		Pinned:        in.Pinned,
		CreatedBy:     a.ID,
		CreatedByName: a.Name,
	})
	if err != nil {
		return models.Note{}, apperr.FromStore(op, err)
	}
	s.pub.Publish(realtime.NoteEvent(realtime.Added, n))
	return n, nil
}

func (s *Service) loadNote(ctx context.Context, op string, a Actor, id primitive.ObjectID) (models.Note, error) {
	n, err := s.notes.GetByID(ctx, id)
	if errors.Is(err, notestore.ErrNotFound) {
		return models.Note{}, apperr.Wrap(apperr.NotFound, op, err)
	}
	if err != nil {
		return models.Note{}, apperr.FromStore(op, err)
	}
	r, err := s.role(ctx, op, a.ID, n.WorkspaceID)
	if err != nil {
		return models.Note{}, err
	}
	if !workspacepolicy.CanEditContent(r, a.ID, n.CreatedBy) {
		return models.Note{}, apperr.New(apperr.Forbidden, op, "only the author or a workspace admin may change this note")
	}
	return n, nil
}

func (s *Service) UpdateNote(ctx context.Context, a Actor, id primitive.ObjectID, p NotePatch) (models.Note, error) {
	const op = "content.UpdateNote"
	n, err := s.loadNote(ctx, op, a, id)
	if err != nil {
		return models.Note{}, err
	}
	if p.Title != nil {
		if n.Title, err = cleanTitle(op, *p.Title); err != nil {
			return models.Note{}, err
		}
	}
	if p.Body != nil {
		if n.Body, err = cleanBody(op, *p.Body); err != nil {
			return models.Note{}, err
		}
	}
	if p.Pinned != nil {
		n.Pinned = *p.Pinned
	}
	n.UpdatedBy = a.ID
	n.UpdatedAt = s.now()
	if err := s.notes.Replace(ctx, n); err != nil {
		if errors.Is(err, notestore.ErrNotFound) {
			return models.Note{}, apperr.Wrap(apperr.NotFound, op, err)
		}
		return models.Note{}, apperr.FromStore(op, err)
	}
	s.pub.Publish(realtime.NoteEvent(realtime.Modified, n))
	return n, nil
}

func (s *Service) DeleteNote(ctx context.Context, a Actor, id primitive.ObjectID) error {
	const op = "content.DeleteNote"
	n, err := s.loadNote(ctx, op, a, id)
	if err != nil {
		return err
	}
	if err := s.notes.Delete(ctx, id); err != nil {
		if errors.Is(err, notestore.ErrNotFound) {
			return apperr.Wrap(apperr.NotFound, op, err)
		}
		return apperr.FromStore(op, err)
	}
	s.pub.Publish(realtime.NoteEvent(realtime.Removed, n))
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Categories                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

type CategoryInput struct {
	Name  string
	Icon  string
	Color string
	Order int
}

type CategoryPatch struct {
	Name  *string
	Icon  *string
	Color *string
	Order *int
}

// slug derives a category key from its name.
func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range text.Fold(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func cleanCategoryName(op, n string) (string, error) {
	n = htmlsanitize.PlainText(n)
	if n == "" {
		return "", apperr.New(apperr.InvalidArgument, op, "name is required")
	}
	if !inputval.WithinLimit(n, inputval.MaxWorkspaceName) {
		return "", apperr.New(apperr.InvalidArgument, op, "name is too long")
	}
	return n, nil
}

func (s *Service) CreateCategory(ctx context.Context, a Actor, wsID primitive.ObjectID, in CategoryInput) (models.Category, error) {
	const op = "content.CreateCategory"
	if _, err := s.role(ctx, op, a.ID, wsID); err != nil {
		return models.Category{}, err
	}
	name, err := cleanCategoryName(op, in.Name)
	if err != nil {
		return models.Category{}, err
	}
	key := slug(name)
	if key == "" {
		return models.Category{}, apperr.New(apperr.InvalidArgument, op, "name needs a letter or digit")
	}
	c, err := s.cats.Create(ctx, models.Category{
		WorkspaceID: wsID,
		Key:         key,
		Name:        name,
		Icon:        htmlsanitize.PlainText(in.Icon),
		Color:       htmlsanitize.PlainText(in.Color),
		Order:       in.Order,
		CreatedBy:   a.ID,
	})
	if errors.Is(err, categorystore.ErrDuplicate) {
		return models.Category{}, apperr.Wrap(apperr.Conflict, op, err)
	}
	if err != nil {
		return models.Category{}, apperr.FromStore(op, err)
	}
	s.pub.Publish(realtime.CategoryEvent(realtime.Added, c))
	return c, nil
}

func (s *Service) loadCategory(ctx context.Context, op string, a Actor, id primitive.ObjectID) (models.Category, error) {
	c, err := s.cats.GetByID(ctx, id)
	if errors.Is(err, categorystore.ErrNotFound) {
		return models.Category{}, apperr.Wrap(apperr.NotFound, op, err)
	}
	if err != nil {
		return models.Category{}, apperr.FromStore(op, err)
	}
	r, err := s.role(ctx, op, a.ID, c.WorkspaceID)
	if err != nil {
		return models.Category{}, err
	}
	if !workspacepolicy.CanEditContent(r, a.ID, c.CreatedBy) {
		return models.Category{}, apperr.New(apperr.Forbidden, op, "only the author or a workspace admin may change this category")
	}
	return c, nil
}

// UpdateCategory renames or restyles a category. The key stays fixed.
func (s *Service) UpdateCategory(ctx context.Context, a Actor, id primitive.ObjectID, p CategoryPatch) (models.Category, error) {
	const op = "content.UpdateCategory"
	c, err := s.loadCategory(ctx, op, a, id)
	if err != nil {
		return models.Category{}, err
	}
	if p.Name != nil {
		if c.Name, err = cleanCategoryName(op, *p.Name); err != nil {
			return models.Category{}, err
		}
	}
	if p.Icon != nil {
		c.Icon = htmlsanitize.PlainText(*p.Icon)
	}
	if p.Color != nil {
		c.Color = htmlsanitize.PlainText(*p.Color)
	}
	if p.Order != nil {
		c.Order = *p.Order
	}
	c.UpdatedAt = s.now()
	if err := s.cats.Replace(ctx, c); err != nil {
		if errors.Is(err, categorystore.ErrNotFound) {
			return models.Category{}, apperr.Wrap(apperr.NotFound, op, err)
		}
		return models.Category{}, apperr.FromStore(op, err)
	}
	s.pub.Publish(realtime.CategoryEvent(realtime.Modified, c))
	return c, nil
}

// DeleteCategory removes a non-default category and detaches its tasks.
func (s *Service) DeleteCategory(ctx context.Context, a Actor, id primitive.ObjectID) error {
	const op = "content.DeleteCategory"
	c, err := s.loadCategory(ctx, op, a, id)
	if err != nil {
		return err
	}
	if c.IsDefault {
		return apperr.New(apperr.Conflict, op, "default categories cannot be deleted")
	}

	var detached []models.Task
	err = s.tx.Run(ctx, func(ctx context.Context) error {
		tasks, err := s.tasks.ListByWorkspace(ctx, c.WorkspaceID)
		if err != nil {
			return err
		}
		detached = detached[:0]
		for _, t := range tasks {
			if t.CategoryID != nil && *t.CategoryID == c.ID {
				t.CategoryID = nil
				detached = append(detached, t)
			}
		}
		steps := txn.NewSteps(op, s.log)
		if err := steps.Do(ctx, "detach tasks", func(ctx context.Context) error {
			_, err := s.tasks.UnsetCategory(ctx, c.WorkspaceID, c.ID)
			return err
		}, func(ctx context.Context) error {
			var errs []error
			for _, t := range detached {
				id := c.ID
				t.CategoryID = &id
				errs = append(errs, s.tasks.Replace(ctx, t))
			}
			return errors.Join(errs...)
		}); err != nil {
			return err
		}
		return steps.Do(ctx, "delete category", func(ctx context.Context) error {
			return s.cats.Delete(ctx, c.ID)
		}, nil)
	})
	if err != nil {
		return apperr.FromStore(op, err)
	}

	events := make([]realtime.Event, 0, len(detached)+1)
	for _, t := range detached {
		events = append(events, realtime.TaskEvent(realtime.Modified, t))
	}
	events = append(events, realtime.CategoryEvent(realtime.Removed, c))
	s.pub.Publish(events...)
	return nil
}

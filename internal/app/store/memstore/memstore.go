// Package memstore is an in-process backend with the same method sets and
// sentinel errors as the Mongo stores. It backs the "memory" storage
// backend and the service tests.
package memstore

import (
	"sort"
	"sync"

	"github.com/dalemusser/taskhub/internal/app/store/audit"
	sessionstore "github.com/dalemusser/taskhub/internal/app/store/sessions"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type uwKey struct {
	user string
	ws   primitive.ObjectID
}

type prefKey struct {
	user, key string
}

// DB holds every collection behind one lock.
type DB struct {
	mu sync.RWMutex

	users      map[string]models.User
	workspaces map[primitive.ObjectID]models.Workspace
	members    map[primitive.ObjectID]models.Membership
	assoc      map[uwKey]models.UserWorkspace
	invites    map[primitive.ObjectID]models.Invitation
	tasks      map[primitive.ObjectID]models.Task
	notes      map[primitive.ObjectID]models.Note
	categories map[primitive.ObjectID]models.Category
	prefs      map[prefKey]string
	sessions   map[string]sessionstore.Session
	audit      []audit.Event

	orderedOff bool
}

func New() *DB {
	return &DB{
		users:      make(map[string]models.User),
		workspaces: make(map[primitive.ObjectID]models.Workspace),
		members:    make(map[primitive.ObjectID]models.Membership),
		assoc:      make(map[uwKey]models.UserWorkspace),
		invites:    make(map[primitive.ObjectID]models.Invitation),
		tasks:      make(map[primitive.ObjectID]models.Task),
		notes:      make(map[primitive.ObjectID]models.Note),
		categories: make(map[primitive.ObjectID]models.Category),
		prefs:      make(map[prefKey]string),
		sessions:   make(map[string]sessionstore.Session),
	}
}

// DropOrderedIndex makes the ordered invitation query report a missing
// index, the way Mongo does when the hinted index is absent.
func (db *DB) DropOrderedIndex() {
	db.mu.Lock()
	db.orderedOff = true
	db.mu.Unlock()
}

func (db *DB) Users() *Users                   { return &Users{db} }
func (db *DB) Workspaces() *Workspaces         { return &Workspaces{db} }
func (db *DB) Memberships() *Memberships       { return &Memberships{db} }
func (db *DB) UserWorkspaces() *UserWorkspaces { return &UserWorkspaces{db} }
func (db *DB) Invitations() *Invitations       { return &Invitations{db} }
func (db *DB) Tasks() *Tasks                   { return &Tasks{db} }
func (db *DB) Notes() *Notes                   { return &Notes{db} }
func (db *DB) Categories() *Categories         { return &Categories{db} }
func (db *DB) Prefs() *Prefs                   { return &Prefs{db} }
func (db *DB) Sessions() *Sessions             { return &Sessions{db} }
func (db *DB) Audit() *Audit                   { return &Audit{db} }

func sortedValues[K comparable, V any](m map[K]V, less func(a, b V) bool) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func objectIDLess(a, b primitive.ObjectID) bool {
	return a.Hex() < b.Hex()
}

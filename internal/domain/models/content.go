package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Task is a to-do item inside one workspace.
type Task struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	WorkspaceID   primitive.ObjectID  `bson:"workspace_id" json:"workspace_id"`
	CategoryID    *primitive.ObjectID `bson:"category_id,omitempty" json:"category_id,omitempty"`
	Title         string              `bson:"title" json:"title"`
	Description   string              `bson:"description,omitempty" json:"description,omitempty"`
	Priority      string              `bson:"priority,omitempty" json:"priority,omitempty"`
	Completed     bool                `bson:"completed" json:"completed"`
	DueAt         *time.Time          `bson:"due_at,omitempty" json:"due_at,omitempty"`
	Order         int                 `bson:"order" json:"order"`
	CreatedBy     string              `bson:"created_by" json:"created_by"`
	CreatedByName string              `bson:"created_by_name" json:"created_by_name"`
	UpdatedBy     string              `bson:"updated_by,omitempty" json:"updated_by,omitempty"`
	CreatedAt     time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `bson:"updated_at" json:"updated_at"`
}

// Note is a free-form note inside one workspace.
type Note struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkspaceID   primitive.ObjectID `bson:"workspace_id" json:"workspace_id"`
	Title         string             `bson:"title" json:"title"`
	Body          string             `bson:"body" json:"body"`
	Pinned        bool               `bson:"pinned" json:"pinned"`
	CreatedBy     string             `bson:"created_by" json:"created_by"`
	CreatedByName string             `bson:"created_by_name" json:"created_by_name"`
	UpdatedBy     string             `bson:"updated_by,omitempty" json:"updated_by,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// Category groups tasks into columns.
type Category struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkspaceID primitive.ObjectID `bson:"workspace_id" json:"workspace_id"`
	Key         string             `bson:"key" json:"key"` // stable slug, unique per workspace
	Name        string             `bson:"name" json:"name"`
	Icon        string             `bson:"icon,omitempty" json:"icon,omitempty"`
	Color       string             `bson:"color,omitempty" json:"color,omitempty"`
	Order       int                `bson:"order" json:"order"`
	IsDefault   bool               `bson:"is_default" json:"is_default"`
	CreatedBy   string             `bson:"created_by" json:"created_by"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// DefaultCategories returns the columns seeded into every new workspace.
func DefaultCategories(wsID primitive.ObjectID, createdBy string) []Category {
	seed := []struct{ key, name, icon string }{
		{"todo", "To Do", "list"},
		{"inprogress", "In Progress", "clock"},
		{"completed", "Completed", "check"},
	}
	out := make([]Category, 0, len(seed))
	for i, s := range seed {
		out = append(out, Category{
			WorkspaceID: wsID,
			Key:         s.key,
			Name:        s.name,
			Icon:        s.icon,
			Order:       i,
			IsDefault:   true,
			CreatedBy:   createdBy,
		})
	}
	return out
}

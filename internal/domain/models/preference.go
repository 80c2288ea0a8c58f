package models

import "time"

// Preference keys kept per user.
const (
	PrefCurrentWorkspace = "current_workspace"
	PrefTheme            = "theme"
)

// Preference is one small string value remembered for a user across
// sessions.
type Preference struct {
	UserID    string    `bson:"user_id"`
	Key       string    `bson:"key"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

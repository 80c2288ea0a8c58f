// internal/domain/models/user.go
package models

import "time"

// User is the profile record for an authenticated person.
//
// ID is the identity provider's stable subject id. Profiles are created on
// first sign-in, refreshed on every sign-in, and never deleted.
type User struct {
	ID          string `bson:"_id" json:"id"`
	Email       string `bson:"email" json:"email"`
	EmailCI     string `bson:"email_ci" json:"-"` // folded, unique
	DisplayName string `bson:"display_name" json:"display_name"`
	PhotoURL    string `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
	Provider    string `bson:"provider,omitempty" json:"provider,omitempty"` // google | dev

	LastLoginAt time.Time `bson:"last_login_at" json:"last_login_at"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// Identity is what the identity provider hands us after authentication.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
	PhotoURL    string
	Provider    string
}

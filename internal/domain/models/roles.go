package models

import "strings"

// Role is a member's standing inside one workspace.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

var roleLevels = map[Role]int{
	RoleOwner:  3,
	RoleAdmin:  2,
	RoleMember: 1,
}

// ParseRole folds s and returns the matching role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	_, ok := roleLevels[r]
	return r, ok
}

// Level returns the numeric rank of r (0 for unknown roles).
func (r Role) Level() int {
	return roleLevels[r]
}

// IsAtLeast reports whether r ranks at or above other.
func (r Role) IsAtLeast(other Role) bool {
	return r.Level() >= other.Level() && r.Level() > 0
}

func (r Role) String() string { return string(r) }

// Package workspacepolicy provides the permission rules of a workspace.
//
// Authorization rules:
//   - The owner can do everything, and is the only one who can delete the
//     workspace
//   - Admins manage members, settings and invitations, and can edit or
//     delete any content
//   - Members edit and delete only what they created, and invite only when
//     the workspace allows it
//   - Nobody can grant, change or remove the owner role
//
// The predicates are pure; callers load the caller's role first. A zero
// Role means "not an active member" and is refused everywhere.
package workspacepolicy

import "github.com/dalemusser/taskhub/internal/domain/models"

func isManager(r models.Role) bool {
	return r == models.RoleOwner || r == models.RoleAdmin
}

// CanManageMembers reports whether r may list, re-role and remove members.
func CanManageMembers(r models.Role) bool {
	return isManager(r)
}

// CanDeleteWorkspace reports whether r may delete the workspace.
func CanDeleteWorkspace(r models.Role) bool {
	return r == models.RoleOwner
}

// CanUpdateSettings reports whether r may change name, description or
// settings.
func CanUpdateSettings(r models.Role) bool {
	return isManager(r)
}

// CanViewInvitations reports whether r may see every invitation of the
// workspace.
func CanViewInvitations(r models.Role) bool {
	return isManager(r)
}

// CanInvite reports whether r may send invitations into a workspace with
// settings s.
func CanInvite(r models.Role, s models.WorkspaceSettings) bool {
	if isManager(r) {
		return true
	}
	return r == models.RoleMember && s.AllowMemberInvite
}

// CanAssignRole reports whether caller may hand out proposed, either by
// invitation or by a role change. Members may only propose member.
func CanAssignRole(caller, proposed models.Role) bool {
	switch proposed {
	case models.RoleAdmin:
		return isManager(caller)
	case models.RoleMember:
		return caller.Level() > 0
	default:
		return false
	}
}

// CanChangeRole reports whether caller may move target from its current
// role to next.
func CanChangeRole(caller, target, next models.Role) bool {
	if !isManager(caller) || target == models.RoleOwner {
		return false
	}
	return next == models.RoleAdmin || next == models.RoleMember
}

// CanRemoveMember reports whether caller may remove a member holding
// target.
func CanRemoveMember(caller, target models.Role) bool {
	return isManager(caller) && target != models.RoleOwner
}

// CanEditContent reports whether a member with role r may edit an item
// created by createdBy.
func CanEditContent(r models.Role, userID, createdBy string) bool {
	if isManager(r) {
		return true
	}
	return r == models.RoleMember && userID != "" && userID == createdBy
}

// CanDeleteContent follows the edit rule.
func CanDeleteContent(r models.Role, userID, createdBy string) bool {
	return CanEditContent(r, userID, createdBy)
}

func CanEditTask(r models.Role, userID string, t models.Task) bool {
	return CanEditContent(r, userID, t.CreatedBy)
}

func CanDeleteTask(r models.Role, userID string, t models.Task) bool {
	return CanDeleteContent(r, userID, t.CreatedBy)
}

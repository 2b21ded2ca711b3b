package domain

// Action is a category of operation checked by the authorization gate.
type Action string

// Action values.
const (
	ActionRead            Action = "read"
	ActionCreate          Action = "create"
	ActionUpdateContent   Action = "update-content"
	ActionAddMember       Action = "add-member"
	ActionUpdateRole      Action = "update-role"
	ActionRemoveMember    Action = "remove-member"
	ActionDeleteProtected Action = "delete-owner-protected"
)

// minimumRole is the least privileged role allowed to perform each action.
var minimumRole = map[Action]Role{
	ActionRead:            RoleViewer,
	ActionCreate:          RoleMember,
	ActionUpdateContent:   RoleMember,
	ActionAddMember:       RoleAdmin,
	ActionUpdateRole:      RoleAdmin,
	ActionRemoveMember:    RoleAdmin,
	ActionDeleteProtected: RoleOwner,
}

// CanPerform reports whether a member holding role may perform action.
// Unknown roles and unknown actions are always denied.
func CanPerform(role Role, action Action) bool {
	minimum, ok := minimumRole[action]
	if !ok {
		return false
	}
	return role.AtLeast(minimum)
}

// CanAssignRole reports whether granter may set a member's role from current to target.
// Only owners may grant the owner role or change an owner's role.
func CanAssignRole(granter, current, target Role) bool {
	if !CanPerform(granter, ActionUpdateRole) {
		return false
	}
	if target == RoleOwner || current == RoleOwner {
		return granter == RoleOwner
	}
	return true
}

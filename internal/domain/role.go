package domain

import (
	"strings"
	"time"
)

// Role is a member's privilege level within one workspace.
type Role string

// Role values, highest privilege first.
const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// DefaultRole is assigned when an invitation omits the role or names an unknown one.
const DefaultRole = RoleMember

// roleRank orders roles by privilege.
var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// Roles returns every role, highest privilege first.
func Roles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleMember, RoleViewer}
}

// ParseRole parses one role name case-insensitively.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := roleRank[role]; !ok {
		return "", ErrInvalidRole
	}
	return role, nil
}

// ParseRoleOrDefault parses raw and falls back to DefaultRole when it is empty or unknown.
func ParseRoleOrDefault(raw string) Role {
	role, err := ParseRole(raw)
	if err != nil {
		return DefaultRole
	}
	return role
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r is as privileged as other.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other] && r.Valid()
}

// Member is the (workspace, user) role assignment.
type Member struct {
	WorkspaceID string
	UserID      string
	Role        Role
	JoinedAt    time.Time
}

// NewMember constructs a membership row.
func NewMember(workspaceID, userID string, role Role, now time.Time) (Member, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	userID = strings.TrimSpace(userID)
	if workspaceID == "" || userID == "" {
		return Member{}, ErrInvalidID
	}
	if !role.Valid() {
		return Member{}, ErrInvalidRole
	}
	return Member{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		JoinedAt:    now.UTC(),
	}, nil
}

// MemberProfile joins a membership with its user for listings.
type MemberProfile struct {
	Member
	Email       string
	DisplayName string
	AvatarURL   string
	JobTitle    string
	Department  string
}

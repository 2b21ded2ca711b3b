package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/nexus/internal/domain"
)

// ListMembers lists a workspace's members with their profiles.
func (s *Service) ListMembers(ctx context.Context, workspaceID string) ([]domain.MemberProfile, error) {
	if _, _, err := s.authorizeWorkspace(ctx, workspaceID, domain.ActionRead); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, workspaceID)
}

// AddMemberInput holds input values for add member operations.
type AddMemberInput struct {
	WorkspaceID string
	Email       string
	DisplayName string
	// Role is parsed leniently; empty or unknown values become domain.DefaultRole.
	Role string
}

// AddMember invites a user by email, creating a placeholder user when needed.
func (s *Service) AddMember(ctx context.Context, in AddMemberInput) (domain.MemberProfile, error) {
	_, granter, err := s.authorizeWorkspace(ctx, in.WorkspaceID, domain.ActionAddMember)
	if err != nil {
		return domain.MemberProfile{}, err
	}
	role := domain.ParseRoleOrDefault(in.Role)
	if !domain.CanAssignRole(granter.Role, "", role) {
		return domain.MemberProfile{}, fmt.Errorf("%w: %s cannot grant %s", ErrForbidden, granter.Role, role)
	}
	email, err := domain.NormalizeEmail(in.Email)
	if err != nil {
		return domain.MemberProfile{}, err
	}

	now := s.clock()
	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		user, err = domain.NewUser(domain.UserInput{
			ID:          s.idGen(),
			Email:       email,
			DisplayName: in.DisplayName,
		}, now)
		if err != nil {
			return domain.MemberProfile{}, err
		}
		err = s.repo.CreateUser(ctx, user)
	}
	if err != nil {
		return domain.MemberProfile{}, err
	}

	if _, err := s.repo.GetMember(ctx, in.WorkspaceID, user.ID); err == nil {
		return domain.MemberProfile{}, fmt.Errorf("%w: %s is already a member", ErrConflict, email)
	} else if !errors.Is(err, ErrNotFound) {
		return domain.MemberProfile{}, err
	}
	member, err := domain.NewMember(in.WorkspaceID, user.ID, role, now)
	if err != nil {
		return domain.MemberProfile{}, err
	}
	if err := s.repo.CreateMember(ctx, member); err != nil {
		return domain.MemberProfile{}, err
	}
	return profileOf(member, user), nil
}

// UpdateMemberRole changes a member's role. The role string is parsed strictly.
func (s *Service) UpdateMemberRole(ctx context.Context, workspaceID, userID, rawRole string) (domain.Member, error) {
	_, granter, err := s.authorizeWorkspace(ctx, workspaceID, domain.ActionUpdateRole)
	if err != nil {
		return domain.Member{}, err
	}
	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return domain.Member{}, err
	}
	target, err := s.repo.GetMember(ctx, workspaceID, strings.TrimSpace(userID))
	if err != nil {
		return domain.Member{}, err
	}
	if !domain.CanAssignRole(granter.Role, target.Role, role) {
		return domain.Member{}, fmt.Errorf("%w: %s cannot change %s to %s", ErrForbidden, granter.Role, target.Role, role)
	}
	if target.Role == role {
		return target, nil
	}
	// fast path; the repository repeats the count inside its write
	if target.Role == domain.RoleOwner {
		owners, err := s.countOwners(ctx, workspaceID)
		if err != nil {
			return domain.Member{}, err
		}
		if owners <= 1 {
			return domain.Member{}, ErrLastOwner
		}
	}
	target.Role = role
	if err := s.repo.UpdateMember(ctx, target); err != nil {
		return domain.Member{}, err
	}
	return target, nil
}

// RemoveMember removes a non-owner member. Owner targets are always rejected,
// whatever the caller's role.
func (s *Service) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	caller, err := s.requireCaller(ctx)
	if err != nil {
		return err
	}
	remover, err := s.membership(ctx, workspaceID, caller)
	if err != nil {
		return err
	}
	target, err := s.repo.GetMember(ctx, workspaceID, strings.TrimSpace(userID))
	if err != nil {
		return err
	}
	if target.Role == domain.RoleOwner {
		return ErrOwnerRemoval
	}
	if !domain.CanPerform(remover.Role, domain.ActionRemoveMember) {
		return fmt.Errorf("%w: %s requires more than %s", ErrForbidden, domain.ActionRemoveMember, remover.Role)
	}
	return s.repo.DeleteMember(ctx, workspaceID, target.UserID)
}

// countOwners counts owner memberships in a workspace.
func (s *Service) countOwners(ctx context.Context, workspaceID string) (int, error) {
	members, err := s.repo.ListMembers(ctx, workspaceID)
	if err != nil {
		return 0, err
	}
	owners := 0
	for _, m := range members {
		if m.Role == domain.RoleOwner {
			owners++
		}
	}
	return owners, nil
}

// profileOf joins a membership with its user.
func profileOf(member domain.Member, user domain.User) domain.MemberProfile {
	return domain.MemberProfile{
		Member:      member,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		JobTitle:    user.JobTitle,
		Department:  user.Department,
	}
}

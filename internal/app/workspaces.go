package app

import (
	"context"
	"errors"

	"github.com/hylla/nexus/internal/domain"
)

// CreateWorkspaceInput holds input values for create workspace operations.
type CreateWorkspaceInput struct {
	Name             string
	Slug             string
	Description      string
	TeamsChannelID   string
	SharePointSiteID string
}

// CreateWorkspace creates a workspace with the caller as its owner.
func (s *Service) CreateWorkspace(ctx context.Context, in CreateWorkspaceInput) (domain.Workspace, error) {
	caller, err := s.requireCaller(ctx)
	if err != nil {
		return domain.Workspace{}, err
	}
	now := s.clock()
	ws, err := domain.NewWorkspace(domain.WorkspaceInput{
		ID:               s.idGen(),
		Name:             in.Name,
		Slug:             in.Slug,
		Description:      in.Description,
		TeamsChannelID:   in.TeamsChannelID,
		SharePointSiteID: in.SharePointSiteID,
	}, now)
	if err != nil {
		return domain.Workspace{}, err
	}
	owner, err := domain.NewMember(ws.ID, caller.UserID, domain.RoleOwner, now)
	if err != nil {
		return domain.Workspace{}, err
	}
	if err := s.repo.CreateWorkspace(ctx, ws, owner); err != nil {
		return domain.Workspace{}, err
	}
	return ws, nil
}

// EnsureDefaultWorkspace returns the "default" workspace, creating it with the caller as owner.
func (s *Service) EnsureDefaultWorkspace(ctx context.Context) (domain.Workspace, error) {
	if _, err := s.requireCaller(ctx); err != nil {
		return domain.Workspace{}, err
	}
	ws, err := s.repo.GetWorkspaceBySlug(ctx, DefaultWorkspaceSlug)
	if err == nil {
		return ws, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.Workspace{}, err
	}
	return s.CreateWorkspace(ctx, CreateWorkspaceInput{Name: DefaultWorkspaceName, Slug: DefaultWorkspaceSlug})
}

// ListWorkspaces lists workspaces the caller belongs to.
func (s *Service) ListWorkspaces(ctx context.Context) ([]domain.Workspace, error) {
	caller, err := s.requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListWorkspacesForUser(ctx, caller.UserID)
}

// GetWorkspace returns one workspace visible to the caller.
func (s *Service) GetWorkspace(ctx context.Context, id string) (domain.Workspace, error) {
	if _, _, err := s.authorizeWorkspace(ctx, id, domain.ActionRead); err != nil {
		return domain.Workspace{}, err
	}
	return s.repo.GetWorkspace(ctx, id)
}

// DeleteWorkspace deletes a workspace and everything it owns. Owners only.
func (s *Service) DeleteWorkspace(ctx context.Context, id string) error {
	caller, _, err := s.authorizeWorkspace(ctx, id, domain.ActionDeleteProtected)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteWorkspace(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted workspace", "workspace_id", id, "actor_id", caller.UserID)
	return nil
}

package app

import (
	"context"
	"time"

	"github.com/hylla/nexus/internal/domain"
	"github.com/shopspring/decimal"
)

// CreateProjectInput holds input values for create project operations.
type CreateProjectInput struct {
	WorkspaceID string
	Name        string
	Description string
	Status      domain.ProjectStatus
	StartDate   *time.Time
	EndDate     *time.Time
	Budget      *decimal.Decimal
	RiskScore   *int
}

// CreateProject creates a project in a workspace.
func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (domain.Project, error) {
	if _, _, err := s.authorizeWorkspace(ctx, in.WorkspaceID, domain.ActionCreate); err != nil {
		return domain.Project{}, err
	}
	project, err := domain.NewProject(domain.ProjectInput{
		ID:          s.idGen(),
		WorkspaceID: in.WorkspaceID,
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Budget:      in.Budget,
		RiskScore:   in.RiskScore,
	}, s.clock())
	if err != nil {
		return domain.Project{}, err
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// ListProjects lists a workspace's projects, most recently updated first.
func (s *Service) ListProjects(ctx context.Context, workspaceID string) ([]domain.Project, error) {
	if _, _, err := s.authorizeWorkspace(ctx, workspaceID, domain.ActionRead); err != nil {
		return nil, err
	}
	return s.repo.ListProjects(ctx, workspaceID)
}

// GetProject returns one project.
func (s *Service) GetProject(ctx context.Context, id string) (domain.Project, error) {
	_, project, err := s.authorizeProject(ctx, id, domain.ActionRead)
	return project, err
}

// UpdateProject merges patch into a project.
func (s *Service) UpdateProject(ctx context.Context, id string, patch domain.ProjectPatch) (domain.Project, error) {
	_, project, err := s.authorizeProject(ctx, id, domain.ActionUpdateContent)
	if err != nil {
		return domain.Project{}, err
	}
	if err := project.ApplyPatch(patch, s.clock()); err != nil {
		return domain.Project{}, err
	}
	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// DeleteProject deletes a project and, by cascade, its tasks.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	caller, project, err := s.authorizeProject(ctx, id, domain.ActionUpdateContent)
	if err != nil {
		return err
	}
	locators := s.attachmentsUnder(ctx, project.ID, "")
	if err := s.repo.DeleteProject(ctx, project.ID); err != nil {
		return err
	}
	s.purgeBlobs(ctx, locators)
	s.logger.Info("deleted project", "project_id", project.ID, "actor_id", caller.UserID)
	return nil
}

// ListProjectActivity returns the newest change-ledger rows for a project.
func (s *Service) ListProjectActivity(ctx context.Context, projectID string, limit int) ([]domain.ChangeEvent, error) {
	if _, _, err := s.authorizeProject(ctx, projectID, domain.ActionRead); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	return s.repo.ListProjectChangeEvents(ctx, projectID, limit)
}

package app

import (
	"context"

	"github.com/hylla/nexus/internal/domain"
)

// Workload computes per-member task counts for a workspace. Nothing is cached;
// "now" is read once so every member is judged against the same instant.
func (s *Service) Workload(ctx context.Context, workspaceID string) ([]domain.Workload, error) {
	if _, _, err := s.authorizeWorkspace(ctx, workspaceID, domain.ActionRead); err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.repo.ListWorkspaceTasks(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return domain.ComputeWorkload(members, tasks, s.clock().UTC()), nil
}

package app

import (
	"context"
	"strings"

	"github.com/hylla/nexus/internal/domain"
)

// ListChecklist returns a task's checklist in sort order.
func (s *Service) ListChecklist(ctx context.Context, taskID string) ([]domain.ChecklistItem, error) {
	if _, _, _, err := s.authorizeTask(ctx, taskID, domain.ActionRead); err != nil {
		return nil, err
	}
	return s.repo.ListChecklistItems(ctx, taskID)
}

// AddChecklistItem appends an item after the task's highest sort order.
func (s *Service) AddChecklistItem(ctx context.Context, taskID, title string) (domain.ChecklistItem, error) {
	_, task, _, err := s.authorizeTask(ctx, taskID, domain.ActionCreate)
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	item, err := domain.NewChecklistItem(s.idGen(), task.ID, title, s.clock())
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	return s.repo.CreateChecklistItem(ctx, item)
}

// UpdateChecklistItem merges patch into one item of a task.
func (s *Service) UpdateChecklistItem(ctx context.Context, taskID, itemID string, patch domain.ChecklistPatch) (domain.ChecklistItem, error) {
	_, task, _, err := s.authorizeTask(ctx, taskID, domain.ActionUpdateContent)
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	item, err := s.repo.GetChecklistItem(ctx, task.ID, strings.TrimSpace(itemID))
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	if err := item.ApplyPatch(patch, s.clock()); err != nil {
		return domain.ChecklistItem{}, err
	}
	if err := s.repo.UpdateChecklistItem(ctx, item); err != nil {
		return domain.ChecklistItem{}, err
	}
	return item, nil
}

// DeleteChecklistItem removes one item of a task.
func (s *Service) DeleteChecklistItem(ctx context.Context, taskID, itemID string) error {
	_, task, _, err := s.authorizeTask(ctx, taskID, domain.ActionUpdateContent)
	if err != nil {
		return err
	}
	return s.repo.DeleteChecklistItem(ctx, task.ID, strings.TrimSpace(itemID))
}

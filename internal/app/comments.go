package app

import (
	"context"

	"github.com/hylla/nexus/internal/domain"
)

// AddComment appends a comment authored by the caller.
func (s *Service) AddComment(ctx context.Context, taskID, content string) (domain.Comment, error) {
	caller, task, _, err := s.authorizeTask(ctx, taskID, domain.ActionCreate)
	if err != nil {
		return domain.Comment{}, err
	}
	comment, err := domain.NewComment(s.idGen(), task.ID, caller.UserID, content, s.clock())
	if err != nil {
		return domain.Comment{}, err
	}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return domain.Comment{}, err
	}
	if author, err := s.repo.GetUser(ctx, caller.UserID); err == nil {
		comment.AuthorName = author.DisplayName
	}
	return comment, nil
}

// ListComments returns a task's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	if _, _, _, err := s.authorizeTask(ctx, taskID, domain.ActionRead); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, taskID)
}

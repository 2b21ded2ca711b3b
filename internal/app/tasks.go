package app

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/hylla/nexus/internal/domain"
)

// CreateTaskInput holds input values for create task operations.
type CreateTaskInput struct {
	ProjectID      string
	ParentID       string
	AssigneeID     string
	Title          string
	Description    string
	Status         domain.TaskStatus
	Priority       domain.Priority
	Type           domain.TaskType
	DueDate        *time.Time
	EstimatedHours *float64
	IsMilestone    bool
}

// CreateTask creates a task at the end of its sibling list.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	caller, project, err := s.authorizeProject(ctx, in.ProjectID, domain.ActionCreate)
	if err != nil {
		return domain.Task{}, err
	}
	tasks, err := s.repo.ListTasks(ctx, project.ID)
	if err != nil {
		return domain.Task{}, err
	}
	idx := domain.IndexTasks(tasks)
	id := s.idGen()
	parentID := strings.TrimSpace(in.ParentID)
	if err := s.validateParent(ctx, idx, id, parentID, project.ID); err != nil {
		return domain.Task{}, err
	}
	assigneeID := strings.TrimSpace(in.AssigneeID)
	if assigneeID != "" {
		if _, err := s.requireUser(ctx, assigneeID, domain.ErrInvalidAssigneeID); err != nil {
			return domain.Task{}, err
		}
	}

	task, err := domain.NewTask(domain.TaskInput{
		ID:             id,
		ProjectID:      project.ID,
		ParentID:       parentID,
		CreatorID:      caller.UserID,
		AssigneeID:     assigneeID,
		Title:          in.Title,
		Description:    in.Description,
		Status:         in.Status,
		Priority:       in.Priority,
		Type:           in.Type,
		DueDate:        in.DueDate,
		EstimatedHours: in.EstimatedHours,
		SortOrder:      idx.NextSortOrder(parentID),
		IsMilestone:    in.IsMilestone,
	}, s.clock())
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	if task.AssigneeID != "" {
		s.autoSyncTodo(ctx, task, caller)
	}
	return task, nil
}

// UpdateTask merges patch into a task, re-checking parent and assignee when they change.
func (s *Service) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	caller, task, project, err := s.authorizeTask(ctx, id, domain.ActionUpdateContent)
	if err != nil {
		return domain.Task{}, err
	}
	// the repository re-walks ancestry inside its write, so this snapshot only gives early errors
	if patch.ChangesParent(task.ParentID) {
		tasks, err := s.repo.ListTasks(ctx, project.ID)
		if err != nil {
			return domain.Task{}, err
		}
		if err := s.validateParent(ctx, domain.IndexTasks(tasks), task.ID, strings.TrimSpace(*patch.ParentID), project.ID); err != nil {
			return domain.Task{}, err
		}
	}
	assigneeChanged := patch.ChangesAssignee(task.AssigneeID)
	if assigneeChanged && strings.TrimSpace(*patch.AssigneeID) != "" {
		if _, err := s.requireUser(ctx, strings.TrimSpace(*patch.AssigneeID), domain.ErrInvalidAssigneeID); err != nil {
			return domain.Task{}, err
		}
	}
	if err := task.ApplyPatch(patch, s.clock()); err != nil {
		return domain.Task{}, err
	}
	task.UpdatedByID = caller.UserID
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	if assigneeChanged && task.AssigneeID != "" {
		s.autoSyncTodo(ctx, task, caller)
	}
	return task, nil
}

// UpdateTaskStatus sets a task's status. Every transition is allowed, including to the current status.
func (s *Service) UpdateTaskStatus(ctx context.Context, id string, status domain.TaskStatus) (domain.Task, error) {
	caller, task, _, err := s.authorizeTask(ctx, id, domain.ActionUpdateContent)
	if err != nil {
		return domain.Task{}, err
	}
	if err := task.SetStatus(status, s.clock()); err != nil {
		return domain.Task{}, err
	}
	task.UpdatedByID = caller.UserID
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// DeleteTask deletes a task with its checklist, comments, and attachments. Subtasks
// are deleted with it in cascade mode; reject mode refuses when subtasks exist.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	caller, task, project, err := s.authorizeTask(ctx, id, domain.ActionUpdateContent)
	if err != nil {
		return err
	}
	if s.cfg.TaskDeleteMode == DeleteModeReject {
		tasks, err := s.repo.ListTasks(ctx, project.ID)
		if err != nil {
			return err
		}
		if len(domain.IndexTasks(tasks).Children(task.ID)) > 0 {
			return domain.ErrHasSubtasks
		}
	}
	locators := s.attachmentsUnder(ctx, project.ID, task.ID)
	if err := s.repo.DeleteTask(ctx, task.ID, caller.UserID); err != nil {
		return err
	}
	s.purgeBlobs(ctx, locators)
	return nil
}

// GetTask returns one task.
func (s *Service) GetTask(ctx context.Context, id string) (domain.Task, error) {
	_, task, _, err := s.authorizeTask(ctx, id, domain.ActionRead)
	return task, err
}

// TaskDetail is one task with its people, direct subtasks, and owned collections.
type TaskDetail struct {
	Task        domain.Task
	Creator     *domain.UserRef
	Assignee    *domain.UserRef
	Subtasks    []domain.Task
	Checklist   []domain.ChecklistItem
	Comments    []domain.Comment
	Attachments []domain.Attachment
}

// GetTaskDetail loads a task together with everything it owns.
func (s *Service) GetTaskDetail(ctx context.Context, id string) (TaskDetail, error) {
	_, task, _, err := s.authorizeTask(ctx, id, domain.ActionRead)
	if err != nil {
		return TaskDetail{}, err
	}
	detail := TaskDetail{Task: task}
	tasks, err := s.repo.ListTasks(ctx, task.ProjectID)
	if err != nil {
		return TaskDetail{}, err
	}
	detail.Subtasks = domain.IndexTasks(tasks).Children(task.ID)
	users, err := s.userRefs(ctx, []string{task.CreatorID, task.AssigneeID})
	if err != nil {
		return TaskDetail{}, err
	}
	if ref, ok := users[task.CreatorID]; ok {
		detail.Creator = &ref
	}
	if ref, ok := users[task.AssigneeID]; ok && task.AssigneeID != "" {
		detail.Assignee = &ref
	}
	if detail.Checklist, err = s.repo.ListChecklistItems(ctx, task.ID); err != nil {
		return TaskDetail{}, err
	}
	if detail.Comments, err = s.repo.ListComments(ctx, task.ID); err != nil {
		return TaskDetail{}, err
	}
	if detail.Attachments, err = s.repo.ListAttachments(ctx, task.ID); err != nil {
		return TaskDetail{}, err
	}
	return detail, nil
}

// ListTaskTree returns a project's root tasks with nested subtasks and assignees.
func (s *Service) ListTaskTree(ctx context.Context, projectID string) ([]domain.TaskNode, error) {
	tasks, err := s.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		if task.AssigneeID != "" {
			ids = append(ids, task.AssigneeID)
		}
	}
	users, err := s.userRefs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return domain.BuildForest(tasks, users), nil
}

// ListTasks returns every task in a project regardless of depth.
func (s *Service) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	if _, _, err := s.authorizeProject(ctx, projectID, domain.ActionRead); err != nil {
		return nil, err
	}
	return s.repo.ListTasks(ctx, projectID)
}

// validateParent checks a proposed parent against the project's tasks. A parent
// absent from the project is looked up globally to tell a cross-project parent
// from a missing one.
func (s *Service) validateParent(ctx context.Context, idx domain.TaskIndex, taskID, parentID, projectID string) error {
	if parentID == "" {
		return nil
	}
	if _, ok := idx[parentID]; !ok && parentID != taskID {
		parent, err := s.repo.GetTask(ctx, parentID)
		switch {
		case errors.Is(err, ErrNotFound):
			return domain.ErrInvalidParentID
		case err != nil:
			return err
		case parent.ProjectID != projectID:
			return domain.ErrParentOutsideProject
		}
		idx[parent.ID] = parent
	}
	return idx.ValidateParent(taskID, parentID, projectID)
}

// userRefs loads compact user references keyed by id.
func (s *Service) userRefs(ctx context.Context, ids []string) (map[string]domain.UserRef, error) {
	ids = slices.DeleteFunc(slices.Clone(ids), func(id string) bool { return id == "" })
	slices.Sort(ids)
	ids = slices.Compact(ids)
	out := make(map[string]domain.UserRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := s.repo.ListUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		out[user.ID] = user.Ref()
	}
	return out, nil
}

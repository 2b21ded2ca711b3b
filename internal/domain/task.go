package domain

import (
	"slices"
	"strings"
	"time"
)

// TaskStatus is a task's workflow state. Any status may move to any other.
type TaskStatus string

// TaskStatus values in board order.
const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusInReview   TaskStatus = "in_review"
	StatusDone       TaskStatus = "done"
	StatusCancelled  TaskStatus = "cancelled"
)

var validStatuses = []TaskStatus{StatusTodo, StatusInProgress, StatusInReview, StatusDone, StatusCancelled}

// Statuses returns every task status in board order.
func Statuses() []TaskStatus {
	return slices.Clone(validStatuses)
}

// ParseTaskStatus parses one status name, accepting "InProgress", "in-progress", and "in_progress".
func ParseTaskStatus(raw string) (TaskStatus, error) {
	status := TaskStatus(normalizeEnum(raw))
	if !slices.Contains(validStatuses, status) {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// Priority is a task's urgency.
type Priority string

// Priority values.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// ParsePriority parses one priority name.
func ParsePriority(raw string) (Priority, error) {
	priority := Priority(normalizeEnum(raw))
	if !slices.Contains(validPriorities, priority) {
		return "", ErrInvalidPriority
	}
	return priority, nil
}

// TaskType classifies a task. It does not constrain the hierarchy.
type TaskType string

// TaskType values.
const (
	TaskTypeRoadmapPhase TaskType = "roadmap_phase"
	TaskTypeMilestone    TaskType = "milestone"
	TaskTypeTask         TaskType = "task"
	TaskTypeSubtask      TaskType = "subtask"
)

var validTaskTypes = []TaskType{TaskTypeRoadmapPhase, TaskTypeMilestone, TaskTypeTask, TaskTypeSubtask}

// ParseTaskType parses one task type name.
func ParseTaskType(raw string) (TaskType, error) {
	kind := TaskType(normalizeEnum(raw))
	if !slices.Contains(validTaskTypes, kind) {
		return "", ErrInvalidTaskType
	}
	return kind, nil
}

// Task is one node of a project's task forest.
type Task struct {
	ID              string
	ProjectID       string
	ParentID        string
	CreatorID       string
	UpdatedByID     string
	AssigneeID      string
	Title           string
	Description     string
	Status          TaskStatus
	Priority        Priority
	Type            TaskType
	DueDate         *time.Time
	EstimatedHours  *float64
	ActualHours     *float64
	SortOrder       int
	IsMilestone     bool
	CalendarEventID string
	TodoItemID      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TaskInput holds input values for task creation.
type TaskInput struct {
	ID             string
	ProjectID      string
	ParentID       string
	CreatorID      string
	AssigneeID     string
	Title          string
	Description    string
	Status         TaskStatus
	Priority       Priority
	Type           TaskType
	DueDate        *time.Time
	EstimatedHours *float64
	ActualHours    *float64
	SortOrder      int
	IsMilestone    bool
}

// NewTask constructs a validated task with Todo/Medium/Task defaults.
func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.CreatorID = strings.TrimSpace(in.CreatorID)
	if in.ID == "" || in.ProjectID == "" || in.CreatorID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Status == "" {
		in.Status = StatusTodo
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if in.Type == "" {
		in.Type = TaskTypeTask
	}
	t := Task{
		ID:             in.ID,
		ProjectID:      in.ProjectID,
		ParentID:       strings.TrimSpace(in.ParentID),
		CreatorID:      in.CreatorID,
		UpdatedByID:    in.CreatorID,
		AssigneeID:     strings.TrimSpace(in.AssigneeID),
		Title:          strings.TrimSpace(in.Title),
		Description:    strings.TrimSpace(in.Description),
		Status:         in.Status,
		Priority:       in.Priority,
		Type:           in.Type,
		DueDate:        normalizeDate(in.DueDate),
		EstimatedHours: in.EstimatedHours,
		ActualHours:    in.ActualHours,
		SortOrder:      in.SortOrder,
		IsMilestone:    in.IsMilestone,
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}
	if t.ParentID == t.ID {
		return Task{}, ErrParentCycle
	}
	if err := t.validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// TaskPatch carries optional task field updates. Nil fields are left unchanged.
// An empty ParentID detaches the task to the root; an empty AssigneeID unassigns it.
// ClearDueDate removes the due date and wins over DueDate.
type TaskPatch struct {
	Title          *string
	Description    *string
	Status         *TaskStatus
	Priority       *Priority
	Type           *TaskType
	DueDate        *time.Time
	AssigneeID     *string
	ParentID       *string
	EstimatedHours *float64
	ActualHours    *float64
	SortOrder      *int
	IsMilestone    *bool
	ClearDueDate   bool
}

// ChangesParent reports whether the patch moves the task to a different parent than current.
func (p TaskPatch) ChangesParent(current string) bool {
	return p.ParentID != nil && strings.TrimSpace(*p.ParentID) != current
}

// ChangesAssignee reports whether the patch sets a different assignee than current.
func (p TaskPatch) ChangesAssignee(current string) bool {
	return p.AssigneeID != nil && strings.TrimSpace(*p.AssigneeID) != current
}

// ApplyPatch merges patch into t and bumps UpdatedAt. t is unchanged on error.
// Parent existence and ancestry are checked by the caller, which can see the whole project.
func (t *Task) ApplyPatch(patch TaskPatch, now time.Time) error {
	next := *t
	if patch.Title != nil {
		next.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.Priority != nil {
		next.Priority = *patch.Priority
	}
	if patch.Type != nil {
		next.Type = *patch.Type
	}
	if patch.DueDate != nil {
		next.DueDate = normalizeDate(patch.DueDate)
	}
	if patch.ClearDueDate {
		next.DueDate = nil
	}
	if patch.AssigneeID != nil {
		next.AssigneeID = strings.TrimSpace(*patch.AssigneeID)
	}
	if patch.ParentID != nil {
		next.ParentID = strings.TrimSpace(*patch.ParentID)
	}
	if patch.EstimatedHours != nil {
		hours := *patch.EstimatedHours
		next.EstimatedHours = &hours
	}
	if patch.ActualHours != nil {
		hours := *patch.ActualHours
		next.ActualHours = &hours
	}
	if patch.SortOrder != nil {
		next.SortOrder = *patch.SortOrder
	}
	if patch.IsMilestone != nil {
		next.IsMilestone = *patch.IsMilestone
	}
	if next.ParentID == next.ID {
		return ErrParentCycle
	}
	if err := next.validate(); err != nil {
		return err
	}
	next.UpdatedAt = now.UTC()
	*t = next
	return nil
}

// SetStatus sets the status unconditionally and bumps UpdatedAt.
func (t *Task) SetStatus(status TaskStatus, now time.Time) error {
	if !slices.Contains(validStatuses, status) {
		return ErrInvalidStatus
	}
	t.Status = status
	t.UpdatedAt = now.UTC()
	return nil
}

// SetCalendarEventID records the external calendar correlation id.
func (t *Task) SetCalendarEventID(id string, now time.Time) {
	t.CalendarEventID = strings.TrimSpace(id)
	t.UpdatedAt = now.UTC()
}

// SetTodoItemID records the external to-do correlation id.
func (t *Task) SetTodoItemID(id string, now time.Time) {
	t.TodoItemID = strings.TrimSpace(id)
	t.UpdatedAt = now.UTC()
}

// IsRoot reports whether t has no parent.
func (t Task) IsRoot() bool {
	return t.ParentID == ""
}

// IsOverdue reports whether t was due strictly before now and is not done.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != StatusDone
}

func (t Task) validate() error {
	if t.Title == "" {
		return ErrInvalidTitle
	}
	if !slices.Contains(validStatuses, t.Status) {
		return ErrInvalidStatus
	}
	if !slices.Contains(validPriorities, t.Priority) {
		return ErrInvalidPriority
	}
	if !slices.Contains(validTaskTypes, t.Type) {
		return ErrInvalidTaskType
	}
	if t.EstimatedHours != nil && *t.EstimatedHours < 0 {
		return ErrInvalidHours
	}
	if t.ActualHours != nil && *t.ActualHours < 0 {
		return ErrInvalidHours
	}
	return nil
}

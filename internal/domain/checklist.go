package domain

import (
	"strings"
	"time"
)

// ChecklistItem is one sub-item owned by a task.
type ChecklistItem struct {
	ID          string
	TaskID      string
	Title       string
	IsCompleted bool
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewChecklistItem constructs a checklist item. The store assigns SortOrder.
func NewChecklistItem(id, taskID, title string, now time.Time) (ChecklistItem, error) {
	id = strings.TrimSpace(id)
	taskID = strings.TrimSpace(taskID)
	title = strings.TrimSpace(title)
	if id == "" || taskID == "" {
		return ChecklistItem{}, ErrInvalidID
	}
	if title == "" {
		return ChecklistItem{}, ErrInvalidTitle
	}
	return ChecklistItem{
		ID:        id,
		TaskID:    taskID,
		Title:     title,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// ChecklistPatch carries optional checklist item updates.
type ChecklistPatch struct {
	Title       *string
	IsCompleted *bool
	SortOrder   *int
}

// ApplyPatch merges patch into c. c is unchanged on error.
func (c *ChecklistItem) ApplyPatch(patch ChecklistPatch, now time.Time) error {
	next := *c
	if patch.Title != nil {
		next.Title = strings.TrimSpace(*patch.Title)
		if next.Title == "" {
			return ErrInvalidTitle
		}
	}
	if patch.IsCompleted != nil {
		next.IsCompleted = *patch.IsCompleted
	}
	if patch.SortOrder != nil {
		if *patch.SortOrder < 0 {
			return ErrInvalidSortOrder
		}
		next.SortOrder = *patch.SortOrder
	}
	next.UpdatedAt = now.UTC()
	*c = next
	return nil
}

// NextChecklistSortOrder returns the sort order for a new item given the
// existing items and the task's high-water mark. The first item gets 1.
func NextChecklistSortOrder(items []ChecklistItem, highWater int) int {
	top := highWater
	for _, item := range items {
		top = max(top, item.SortOrder)
	}
	return top + 1
}

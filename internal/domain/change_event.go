package domain

import (
	"strings"
	"time"
)

// ChangeOperation describes a persisted activity operation for a task.
type ChangeOperation string

// ChangeOperation values used by the project activity ledger.
const (
	ChangeOperationCreate   ChangeOperation = "create"
	ChangeOperationUpdate   ChangeOperation = "update"
	ChangeOperationStatus   ChangeOperation = "status"
	ChangeOperationReparent ChangeOperation = "reparent"
	ChangeOperationSync     ChangeOperation = "sync"
	ChangeOperationDelete   ChangeOperation = "delete"
)

// ChangeEvent represents a single activity-log entry for a project task.
type ChangeEvent struct {
	ID         int64
	ProjectID  string
	TaskID     string
	Operation  ChangeOperation
	ActorID    string
	Metadata   map[string]string
	OccurredAt time.Time
}

// ClassifyTaskChange picks the ledger operation for an update from before to after.
func ClassifyTaskChange(before, after Task) ChangeOperation {
	switch {
	case before.ParentID != after.ParentID:
		return ChangeOperationReparent
	case before.CalendarEventID != after.CalendarEventID, before.TodoItemID != after.TodoItemID:
		return ChangeOperationSync
	case before.Status != after.Status && ChangedTaskFields(before, after) == "status":
		return ChangeOperationStatus
	default:
		return ChangeOperationUpdate
	}
}

// ChangedTaskFields lists the user-visible fields that differ, comma separated.
func ChangedTaskFields(before, after Task) string {
	fields := make([]string, 0, 8)
	add := func(changed bool, name string) {
		if changed {
			fields = append(fields, name)
		}
	}
	add(before.Title != after.Title, "title")
	add(before.Description != after.Description, "description")
	add(before.Status != after.Status, "status")
	add(before.Priority != after.Priority, "priority")
	add(before.Type != after.Type, "type")
	add(!sameTime(before.DueDate, after.DueDate), "due_date")
	add(before.AssigneeID != after.AssigneeID, "assignee_id")
	add(before.ParentID != after.ParentID, "parent_id")
	add(!sameFloat(before.EstimatedHours, after.EstimatedHours), "estimated_hours")
	add(!sameFloat(before.ActualHours, after.ActualHours), "actual_hours")
	add(before.SortOrder != after.SortOrder, "sort_order")
	add(before.IsMilestone != after.IsMilestone, "is_milestone")
	add(before.CalendarEventID != after.CalendarEventID, "calendar_event_id")
	add(before.TodoItemID != after.TodoItemID, "todo_item_id")
	return strings.Join(fields, ",")
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

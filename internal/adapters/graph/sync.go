package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hylla/nexus/internal/domain"
)

// ErrDueDateRequired reports a calendar push for a task without a due date.
var ErrDueDateRequired = errors.New("graph calendar event needs a due date")

type eventRequest struct {
	Subject                    string           `json:"subject"`
	Body                       itemBody         `json:"body"`
	Start                      dateTimeTimeZone `json:"start"`
	End                        dateTimeTimeZone `json:"end"`
	IsReminderOn               bool             `json:"isReminderOn"`
	ReminderMinutesBeforeStart int              `json:"reminderMinutesBeforeStart"`
}

// CreateEvent books a one-hour calendar event at the task's due date with a 60 minute reminder.
func (c *Client) CreateEvent(ctx context.Context, subject string, task domain.Task) (string, error) {
	base, err := userPath(subject)
	if err != nil {
		return "", err
	}
	if task.DueDate == nil {
		return "", ErrDueDateRequired
	}
	due := *task.DueDate
	req := eventRequest{
		Subject:                    strings.TrimSpace(c.eventPrefix + " " + task.Title),
		Body:                       itemBody{ContentType: "html", Content: task.Description},
		Start:                      utcDateTime(due),
		End:                        utcDateTime(due.Add(time.Hour)),
		IsReminderOn:               true,
		ReminderMinutesBeforeStart: 60,
	}
	var resp idResponse
	if err := c.doJSON(ctx, http.MethodPost, base+"/calendar/events", req, &resp); err != nil {
		return "", err
	}
	return requireID("calendar event", resp)
}

type todoTaskRequest struct {
	Title       string            `json:"title"`
	Body        itemBody          `json:"body"`
	Importance  string            `json:"importance"`
	DueDateTime *dateTimeTimeZone `json:"dueDateTime,omitempty"`
}

type todoList struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type todoListPage struct {
	Value    []todoList `json:"value"`
	NextLink string     `json:"@odata.nextLink"`
}

// CreateListItem adds the task to the user's project to-do list, creating the list on first use.
func (c *Client) CreateListItem(ctx context.Context, subject string, task domain.Task) (string, error) {
	base, err := userPath(subject)
	if err != nil {
		return "", err
	}
	listID, err := c.ensureTodoList(ctx, base)
	if err != nil {
		return "", err
	}
	req := todoTaskRequest{
		Title:      task.Title,
		Body:       itemBody{ContentType: "text", Content: task.Description},
		Importance: importanceFor(task.Priority),
	}
	if task.DueDate != nil {
		due := utcDateTime(*task.DueDate)
		req.DueDateTime = &due
	}
	var resp idResponse
	if err := c.doJSON(ctx, http.MethodPost, base+"/todo/lists/"+listID+"/tasks", req, &resp); err != nil {
		return "", err
	}
	return requireID("to-do task", resp)
}

// ensureTodoList finds the configured list by display name, following pagination, or creates it.
func (c *Client) ensureTodoList(ctx context.Context, base string) (string, error) {
	next := base + "/todo/lists"
	for next != "" {
		var page todoListPage
		if err := c.doJSON(ctx, http.MethodGet, next, nil, &page); err != nil {
			return "", fmt.Errorf("list to-do lists: %w", err)
		}
		for _, list := range page.Value {
			if list.DisplayName == c.todoListName && strings.TrimSpace(list.ID) != "" {
				return list.ID, nil
			}
		}
		next = page.NextLink
	}
	var created idResponse
	if err := c.doJSON(ctx, http.MethodPost, base+"/todo/lists", map[string]string{"displayName": c.todoListName}, &created); err != nil {
		return "", fmt.Errorf("create to-do list: %w", err)
	}
	return requireID("to-do list", created)
}

// importanceFor maps task priority onto remote importance.
func importanceFor(p domain.Priority) string {
	switch p {
	case domain.PriorityHigh, domain.PriorityUrgent:
		return "high"
	case domain.PriorityMedium:
		return "normal"
	default:
		return "low"
	}
}

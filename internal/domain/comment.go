package domain

import (
	"strings"
	"time"
)

// Comment is an append-only note on a task.
type Comment struct {
	ID         string
	TaskID     string
	AuthorID   string
	AuthorName string
	Content    string
	CreatedAt  time.Time
}

// NewComment constructs a normalized comment.
func NewComment(id, taskID, authorID, content string, now time.Time) (Comment, error) {
	id = strings.TrimSpace(id)
	taskID = strings.TrimSpace(taskID)
	authorID = strings.TrimSpace(authorID)
	if id == "" || taskID == "" || authorID == "" {
		return Comment{}, ErrInvalidID
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Comment{}, ErrInvalidContent
	}
	return Comment{
		ID:        id,
		TaskID:    taskID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: now.UTC(),
	}, nil
}

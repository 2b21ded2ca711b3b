package app

import (
	"context"
	"io"

	"github.com/hylla/nexus/internal/domain"
)

// Repository defines persistence for every aggregate the service owns.
// Implementations return ErrNotFound for missing rows and ErrConflict for
// uniqueness violations.
type Repository interface {
	CreateUser(context.Context, domain.User) error
	UpdateUser(context.Context, domain.User) error
	GetUser(context.Context, string) (domain.User, error)
	GetUserBySubject(context.Context, string) (domain.User, error)
	GetUserByEmail(context.Context, string) (domain.User, error)
	ListUsers(ctx context.Context, limit int) ([]domain.User, error)
	ListUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error)

	// CreateWorkspace stores the workspace and its first owner atomically.
	CreateWorkspace(ctx context.Context, ws domain.Workspace, owner domain.Member) error
	GetWorkspace(context.Context, string) (domain.Workspace, error)
	GetWorkspaceBySlug(context.Context, string) (domain.Workspace, error)
	ListWorkspacesForUser(ctx context.Context, userID string) ([]domain.Workspace, error)
	DeleteWorkspace(context.Context, string) error

	CreateMember(context.Context, domain.Member) error
	GetMember(ctx context.Context, workspaceID, userID string) (domain.Member, error)
	ListMembers(ctx context.Context, workspaceID string) ([]domain.MemberProfile, error)
	UpdateMember(context.Context, domain.Member) error
	DeleteMember(ctx context.Context, workspaceID, userID string) error

	CreateProject(context.Context, domain.Project) error
	UpdateProject(context.Context, domain.Project) error
	GetProject(context.Context, string) (domain.Project, error)
	ListProjects(ctx context.Context, workspaceID string) ([]domain.Project, error)
	DeleteProject(context.Context, string) error

	CreateTask(context.Context, domain.Task) error
	UpdateTask(context.Context, domain.Task) error
	GetTask(context.Context, string) (domain.Task, error)
	ListTasks(ctx context.Context, projectID string) ([]domain.Task, error)
	ListWorkspaceTasks(ctx context.Context, workspaceID string) ([]domain.Task, error)
	// DeleteTask removes the task and its subtree, recording actorID in the ledger.
	DeleteTask(ctx context.Context, id, actorID string) error
	ListProjectChangeEvents(ctx context.Context, projectID string, limit int) ([]domain.ChangeEvent, error)

	// CreateChecklistItem assigns the next sort order and returns the stored item.
	CreateChecklistItem(context.Context, domain.ChecklistItem) (domain.ChecklistItem, error)
	UpdateChecklistItem(context.Context, domain.ChecklistItem) error
	GetChecklistItem(ctx context.Context, taskID, itemID string) (domain.ChecklistItem, error)
	ListChecklistItems(ctx context.Context, taskID string) ([]domain.ChecklistItem, error)
	DeleteChecklistItem(ctx context.Context, taskID, itemID string) error

	CreateComment(context.Context, domain.Comment) error
	ListComments(ctx context.Context, taskID string) ([]domain.Comment, error)

	CreateAttachment(context.Context, domain.Attachment) error
	GetAttachment(context.Context, string) (domain.Attachment, error)
	ListAttachments(ctx context.Context, taskID string) ([]domain.Attachment, error)
	DeleteAttachment(context.Context, string) error
}

// FileStorage holds attachment bytes. Locators are opaque to the service.
type FileStorage interface {
	Store(ctx context.Context, body io.Reader, name, scopeID, ownerID string) (string, error)
	Delete(ctx context.Context, locator, ownerID string) error
	// Fetch returns ErrNotFound when the locator no longer resolves.
	Fetch(ctx context.Context, locator, ownerID string) ([]byte, error)
}

// SyncClient pushes tasks to an external calendar and to-do list.
type SyncClient interface {
	CreateEvent(ctx context.Context, subject string, task domain.Task) (string, error)
	CreateListItem(ctx context.Context, subject string, task domain.Task) (string, error)
}

// SyncQueue accepts fire-and-forget sync jobs.
type SyncQueue interface {
	Submit(SyncJob) bool
}

// Logger is the structured logging surface used by the service.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// nopLogger discards every record.
type nopLogger struct{}

func (nopLogger) Debug(any, ...any) {}
func (nopLogger) Info(any, ...any)  {}
func (nopLogger) Warn(any, ...any)  {}
func (nopLogger) Error(any, ...any) {}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/nexus/internal/domain"
)

// DeleteMode selects how deleting a task with subtasks behaves.
type DeleteMode string

// DeleteModeCascade and related constants define package defaults.
const (
	DeleteModeCascade DeleteMode = "cascade"
	DeleteModeReject  DeleteMode = "reject"
)

// ParseDeleteMode parses one configured delete mode.
func ParseDeleteMode(raw string) (DeleteMode, error) {
	switch mode := DeleteMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "":
		return DeleteModeCascade, nil
	case DeleteModeCascade, DeleteModeReject:
		return mode, nil
	default:
		return "", ErrInvalidDeleteMode
	}
}

// Defaults used when ServiceConfig leaves a field zero.
const (
	DefaultUserListLimit  = 100
	DefaultActivityLimit  = 50
	DefaultUploadMaxBytes = 50 << 20
	DefaultWorkspaceName  = "default"
	DefaultWorkspaceSlug  = "default"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	TaskDeleteMode   DeleteMode
	AutoTodoOnAssign bool
	UploadMaxBytes   int64
	UserListLimit    int
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFileStorage sets the attachment byte store.
func WithFileStorage(storage FileStorage) Option {
	return func(s *Service) {
		s.storage = storage
	}
}

// WithSyncQueue sets the queue used for calendar and to-do pushes.
func WithSyncQueue(queue SyncQueue) Option {
	return func(s *Service) {
		s.syncQueue = queue
	}
}

// Service implements workspace, project, task, and membership use cases.
type Service struct {
	repo      Repository
	idGen     IDGenerator
	clock     Clock
	cfg       ServiceConfig
	logger    Logger
	storage   FileStorage
	syncQueue SyncQueue
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig, opts ...Option) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.TaskDeleteMode == "" {
		cfg.TaskDeleteMode = DeleteModeCascade
	}
	if cfg.UploadMaxBytes <= 0 {
		cfg.UploadMaxBytes = DefaultUploadMaxBytes
	}
	if cfg.UserListLimit <= 0 {
		cfg.UserListLimit = DefaultUserListLimit
	}
	s := &Service{
		repo:   repo,
		idGen:  idGen,
		clock:  clock,
		cfg:    cfg,
		logger: nopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// requireCaller returns the authenticated caller or ErrUnauthenticated.
func (s *Service) requireCaller(ctx context.Context) (Caller, error) {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return Caller{}, ErrUnauthenticated
	}
	return caller, nil
}

// authorizeWorkspace resolves the caller's membership and checks action against its role.
// A caller outside the workspace is forbidden; a missing workspace is not found.
func (s *Service) authorizeWorkspace(ctx context.Context, workspaceID string, action domain.Action) (Caller, domain.Member, error) {
	caller, err := s.requireCaller(ctx)
	if err != nil {
		return Caller{}, domain.Member{}, err
	}
	member, err := s.membership(ctx, workspaceID, caller)
	if err != nil {
		return Caller{}, domain.Member{}, err
	}
	if !domain.CanPerform(member.Role, action) {
		return Caller{}, domain.Member{}, fmt.Errorf("%w: %s requires more than %s", ErrForbidden, action, member.Role)
	}
	return caller, member, nil
}

// membership returns the caller's membership row in workspaceID.
func (s *Service) membership(ctx context.Context, workspaceID string, caller Caller) (domain.Member, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return domain.Member{}, domain.ErrInvalidID
	}
	member, err := s.repo.GetMember(ctx, workspaceID, caller.UserID)
	if errors.Is(err, ErrNotFound) {
		if _, wsErr := s.repo.GetWorkspace(ctx, workspaceID); wsErr != nil {
			return domain.Member{}, wsErr
		}
		return domain.Member{}, fmt.Errorf("%w: not a member of workspace %s", ErrForbidden, workspaceID)
	}
	return member, err
}

// authorizeProject loads a project and checks action in its workspace.
func (s *Service) authorizeProject(ctx context.Context, projectID string, action domain.Action) (Caller, domain.Project, error) {
	if _, err := s.requireCaller(ctx); err != nil {
		return Caller{}, domain.Project{}, err
	}
	project, err := s.repo.GetProject(ctx, strings.TrimSpace(projectID))
	if err != nil {
		return Caller{}, domain.Project{}, err
	}
	caller, _, err := s.authorizeWorkspace(ctx, project.WorkspaceID, action)
	if err != nil {
		return Caller{}, domain.Project{}, err
	}
	return caller, project, nil
}

// authorizeTask loads a task with its project and checks action in the owning workspace.
func (s *Service) authorizeTask(ctx context.Context, taskID string, action domain.Action) (Caller, domain.Task, domain.Project, error) {
	if _, err := s.requireCaller(ctx); err != nil {
		return Caller{}, domain.Task{}, domain.Project{}, err
	}
	task, err := s.repo.GetTask(ctx, strings.TrimSpace(taskID))
	if err != nil {
		return Caller{}, domain.Task{}, domain.Project{}, err
	}
	caller, project, err := s.authorizeProject(ctx, task.ProjectID, action)
	if err != nil {
		return Caller{}, domain.Task{}, domain.Project{}, err
	}
	return caller, task, project, nil
}

// requireUser maps a missing user to the supplied validation error.
func (s *Service) requireUser(ctx context.Context, userID string, missing error) (domain.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return domain.User{}, missing
	}
	return user, err
}

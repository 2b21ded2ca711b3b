package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hylla/nexus/internal/domain"
)

// SyncKind names the external collaborator a job targets.
type SyncKind string

// SyncKind values.
const (
	SyncKindCalendar SyncKind = "calendar"
	SyncKindTodo     SyncKind = "todo"
)

// SyncJob asks the dispatcher to push one task to one collaborator on behalf of Subject.
type SyncJob struct {
	Kind    SyncKind
	TaskID  string
	Subject string
	ActorID string
}

// SyncTaskToCalendar queues a calendar event for the task's due date.
func (s *Service) SyncTaskToCalendar(ctx context.Context, taskID string) error {
	caller, task, _, err := s.authorizeTask(ctx, taskID, domain.ActionUpdateContent)
	if err != nil {
		return err
	}
	if task.DueDate == nil {
		return domain.ErrDueDateRequired
	}
	return s.submitSync(SyncJob{Kind: SyncKindCalendar, TaskID: task.ID, Subject: caller.Subject, ActorID: caller.UserID})
}

// SyncTaskToTodo queues a to-do item in the caller's list.
func (s *Service) SyncTaskToTodo(ctx context.Context, taskID string) error {
	caller, task, _, err := s.authorizeTask(ctx, taskID, domain.ActionUpdateContent)
	if err != nil {
		return err
	}
	return s.submitSync(SyncJob{Kind: SyncKindTodo, TaskID: task.ID, Subject: caller.Subject, ActorID: caller.UserID})
}

// submitSync hands a job to the queue. A full queue is logged, not reported.
func (s *Service) submitSync(job SyncJob) error {
	if s.syncQueue == nil {
		return fmt.Errorf("%w: sync is not configured", ErrUnavailable)
	}
	if !s.syncQueue.Submit(job) {
		s.logger.Warn("sync job dropped", "kind", job.Kind, "task_id", job.TaskID)
	}
	return nil
}

// autoSyncTodo pushes a newly assigned task to the assignee's to-do list when enabled.
func (s *Service) autoSyncTodo(ctx context.Context, task domain.Task, caller Caller) {
	if !s.cfg.AutoTodoOnAssign || s.syncQueue == nil {
		return
	}
	subject := s.ownerSubject(ctx, task.AssigneeID)
	if subject == "" {
		s.logger.Debug("assignee has no external identity, skipping to-do sync", "task_id", task.ID)
		return
	}
	_ = s.submitSync(SyncJob{Kind: SyncKindTodo, TaskID: task.ID, Subject: subject, ActorID: caller.UserID})
}

// SyncDispatcherConfig holds configuration for the sync worker pool.
type SyncDispatcherConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// SyncDispatcher runs sync jobs on a bounded pool of workers. Jobs never affect
// the request that queued them; failures are logged.
type SyncDispatcher struct {
	repo    Repository
	client  SyncClient
	clock   Clock
	logger  Logger
	workers int
	timeout time.Duration

	jobs    chan SyncJob
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
	// saveMu serializes reload-and-save so concurrent jobs for one task keep both ids.
	saveMu sync.Mutex
}

// NewSyncDispatcher constructs a dispatcher. Call Start before submitting.
func NewSyncDispatcher(repo Repository, client SyncClient, clock Clock, logger Logger, cfg SyncDispatcherConfig) *SyncDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 16
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 15 * time.Second
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &SyncDispatcher{
		repo:    repo,
		client:  client,
		clock:   clock,
		logger:  logger,
		workers: cfg.Workers,
		timeout: cfg.JobTimeout,
		jobs:    make(chan SyncJob, cfg.QueueSize),
	}
}

// Start launches the workers.
func (d *SyncDispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.running = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.logger.Debug("sync dispatcher started", "workers", d.workers)
}

// Stop stops accepting jobs, drains the queue, and waits for workers to finish.
func (d *SyncDispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
	d.logger.Debug("sync dispatcher stopped")
}

// Submit enqueues job without blocking. It returns false when stopped or full.
func (d *SyncDispatcher) Submit(job SyncJob) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.running {
		return false
	}
	select {
	case d.jobs <- job:
		return true
	default:
		return false
	}
}

func (d *SyncDispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.run(job)
	}
}

// run executes one job and records the correlation id on success.
func (d *SyncDispatcher) run(job SyncJob) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	task, err := d.repo.GetTask(ctx, job.TaskID)
	if err != nil {
		d.logger.Warn("sync task lookup failed", "kind", job.Kind, "task_id", job.TaskID, "err", err)
		return
	}
	var externalID string
	switch job.Kind {
	case SyncKindCalendar:
		externalID, err = d.client.CreateEvent(ctx, job.Subject, task)
	case SyncKindTodo:
		externalID, err = d.client.CreateListItem(ctx, job.Subject, task)
	default:
		err = fmt.Errorf("unknown sync kind %q", job.Kind)
	}
	if err != nil {
		d.logger.Warn("sync failed", "kind", job.Kind, "task_id", job.TaskID, "err", err)
		return
	}

	// Reload so a slow push does not overwrite edits made meanwhile.
	d.saveMu.Lock()
	defer d.saveMu.Unlock()
	task, err = d.repo.GetTask(ctx, job.TaskID)
	if err != nil {
		d.logger.Warn("sync task reload failed", "kind", job.Kind, "task_id", job.TaskID, "err", err)
		return
	}
	now := d.clock()
	if job.Kind == SyncKindCalendar {
		task.SetCalendarEventID(externalID, now)
	} else {
		task.SetTodoItemID(externalID, now)
	}
	if job.ActorID != "" {
		task.UpdatedByID = job.ActorID
	}
	if err := d.repo.UpdateTask(ctx, task); err != nil {
		d.logger.Warn("sync correlation id not saved", "kind", job.Kind, "task_id", job.TaskID, "err", err)
		return
	}
	d.logger.Info("task synced", "kind", job.Kind, "task_id", job.TaskID, "external_id", externalID)
}

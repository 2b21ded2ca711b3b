package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/nexus/internal/app"
	"github.com/hylla/nexus/internal/domain"
)

const taskColumns = `t.id, t.project_id, t.parent_id, t.creator_id, t.updated_by_id, t.assignee_id, t.title, t.description,
	t.status, t.priority, t.type, t.due_date, t.estimated_hours, t.actual_hours, t.sort_order, t.is_milestone,
	t.calendar_event_id, t.todo_item_id, t.created_at, t.updated_at`

// CreateTask inserts a task and records a create event.
func (r *Repository) CreateTask(ctx context.Context, t domain.Task) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tasks(
				id, project_id, parent_id, creator_id, updated_by_id, assignee_id, title, description,
				status, priority, type, due_date, estimated_hours, actual_hours, sort_order, is_milestone,
				calendar_event_id, todo_item_id, created_at, updated_at
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			t.ID,
			t.ProjectID,
			nullableString(t.ParentID),
			t.CreatorID,
			chooseActorID(t.UpdatedByID, t.CreatorID),
			nullableString(t.AssigneeID),
			t.Title,
			t.Description,
			string(t.Status),
			string(t.Priority),
			string(t.Type),
			nullableTS(t.DueDate),
			nullableFloat(t.EstimatedHours),
			nullableFloat(t.ActualHours),
			t.SortOrder,
			boolToInt(t.IsMilestone),
			t.CalendarEventID,
			t.TodoItemID,
			ts(t.CreatedAt),
			ts(t.UpdatedAt),
		); err != nil {
			return translateWriteErr(err)
		}
		return insertTaskChangeEvent(ctx, tx, domain.ChangeEvent{
			ProjectID:  t.ProjectID,
			TaskID:     t.ID,
			Operation:  domain.ChangeOperationCreate,
			ActorID:    chooseActorID(t.UpdatedByID, t.CreatorID),
			Metadata:   map[string]string{"title": t.Title, "parent_id": t.ParentID},
			OccurredAt: t.CreatedAt,
		})
	})
}

// UpdateTask rewrites a task and records one change event describing the transition.
func (r *Repository) UpdateTask(ctx context.Context, t domain.Task) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		prev, err := getTaskByID(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		if t.ParentID != "" && t.ParentID != prev.ParentID {
			if err := checkParentInTx(ctx, tx, t); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks
			SET parent_id = ?, updated_by_id = ?, assignee_id = ?, title = ?, description = ?, status = ?, priority = ?, type = ?,
				due_date = ?, estimated_hours = ?, actual_hours = ?, sort_order = ?, is_milestone = ?,
				calendar_event_id = ?, todo_item_id = ?, updated_at = ?
			WHERE id = ?
		`,
			nullableString(t.ParentID),
			t.UpdatedByID,
			nullableString(t.AssigneeID),
			t.Title,
			t.Description,
			string(t.Status),
			string(t.Priority),
			string(t.Type),
			nullableTS(t.DueDate),
			nullableFloat(t.EstimatedHours),
			nullableFloat(t.ActualHours),
			t.SortOrder,
			boolToInt(t.IsMilestone),
			t.CalendarEventID,
			t.TodoItemID,
			ts(t.UpdatedAt),
			t.ID,
		)
		if err != nil {
			return translateWriteErr(err)
		}
		if err := translateNoRows(res); err != nil {
			return err
		}
		op, metadata := classifyTaskTransition(prev, t)
		return insertTaskChangeEvent(ctx, tx, domain.ChangeEvent{
			ProjectID:  t.ProjectID,
			TaskID:     t.ID,
			Operation:  op,
			ActorID:    chooseActorID(t.UpdatedByID, prev.UpdatedByID),
			Metadata:   metadata,
			OccurredAt: t.UpdatedAt,
		})
	})
}

// GetTask returns a task by id.
func (r *Repository) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return getTaskByID(ctx, r.db, id)
}

// ListTasks returns every task of a project in sibling order.
func (r *Repository) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.project_id = ?
		ORDER BY t.sort_order ASC, t.created_at ASC, t.id ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListWorkspaceTasks returns every task in every project of a workspace.
func (r *Repository) ListWorkspaceTasks(ctx context.Context, workspaceID string) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
		WHERE p.workspace_id = ?
		ORDER BY t.project_id ASC, t.sort_order ASC, t.created_at ASC, t.id ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// DeleteTask removes a task with its whole subtree. Each removed task gets a delete event.
func (r *Repository) DeleteTask(ctx context.Context, id, actorID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			WITH RECURSIVE subtree(id) AS (
				SELECT id FROM tasks WHERE id = ?
				UNION
				SELECT t.id FROM tasks t JOIN subtree s ON t.parent_id = s.id
			)
			SELECT t.id, t.project_id, t.title
			FROM tasks t
			JOIN subtree s ON s.id = t.id
		`, id)
		if err != nil {
			return err
		}
		type removed struct{ id, projectID, title string }
		doomed := make([]removed, 0)
		for rows.Next() {
			var item removed
			if err := rows.Scan(&item.id, &item.projectID, &item.title); err != nil {
				_ = rows.Close()
				return err
			}
			doomed = append(doomed, item)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if len(doomed) == 0 {
			return app.ErrNotFound
		}

		now := time.Now().UTC()
		for _, item := range doomed {
			metadata := map[string]string{"title": item.title}
			if item.id != id {
				metadata["root_task_id"] = id
			}
			if err := insertTaskChangeEvent(ctx, tx, domain.ChangeEvent{
				ProjectID:  item.projectID,
				TaskID:     item.id,
				Operation:  domain.ChangeOperationDelete,
				ActorID:    actorID,
				Metadata:   metadata,
				OccurredAt: now,
			}); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return translateNoRows(res)
	})
}

// ListProjectChangeEvents lists recent task events for a project, newest first.
func (r *Repository) ListProjectChangeEvents(ctx context.Context, projectID string, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, task_id, operation, actor_id, metadata_json, created_at
		FROM change_events
		WHERE project_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChangeEvent, 0)
	for rows.Next() {
		var (
			event       domain.ChangeEvent
			opRaw       string
			metadataRaw string
			createdRaw  string
		)
		if err := rows.Scan(&event.ID, &event.ProjectID, &event.TaskID, &opRaw, &event.ActorID, &metadataRaw, &createdRaw); err != nil {
			return nil, err
		}
		event.Operation = domain.ChangeOperation(opRaw)
		event.OccurredAt = parseTS(createdRaw)
		if strings.TrimSpace(metadataRaw) == "" {
			metadataRaw = "{}"
		}
		if err := json.Unmarshal([]byte(metadataRaw), &event.Metadata); err != nil {
			return nil, fmt.Errorf("decode change_events.metadata_json: %w", err)
		}
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// getTaskByID loads one task through either the pool or an open transaction.
func getTaskByID(ctx context.Context, q queryRower, id string) (domain.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = ?`, id)
	return scanTask(row)
}

// checkParentInTx re-validates a parent change against committed rows, so two
// concurrent re-parents cannot both pass and close a loop.
func checkParentInTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	if t.ParentID == t.ID {
		return domain.ErrParentCycle
	}
	parent, err := getTaskByID(ctx, tx, t.ParentID)
	switch {
	case errors.Is(err, app.ErrNotFound):
		return domain.ErrInvalidParentID
	case err != nil:
		return err
	case parent.ProjectID != t.ProjectID:
		return domain.ErrParentOutsideProject
	}
	var cycle bool
	// UNION drops repeated rows, so the walk ends even over corrupted chains.
	if err := tx.QueryRowContext(ctx, `
		WITH RECURSIVE ancestors(id, parent_id) AS (
			SELECT id, parent_id FROM tasks WHERE id = ?
			UNION
			SELECT p.id, p.parent_id FROM tasks p JOIN ancestors a ON p.id = a.parent_id
		)
		SELECT EXISTS(SELECT 1 FROM ancestors WHERE id = ?)
	`, t.ParentID, t.ID).Scan(&cycle); err != nil {
		return fmt.Errorf("walk task ancestors: %w", err)
	}
	if cycle {
		return domain.ErrParentCycle
	}
	return nil
}

// insertTaskChangeEvent appends one ledger row.
func insertTaskChangeEvent(ctx context.Context, execer execerContext, event domain.ChangeEvent) error {
	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode change event metadata: %w", err)
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO change_events(project_id, task_id, operation, actor_id, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		event.ProjectID,
		event.TaskID,
		string(event.Operation),
		chooseActorID(event.ActorID, "system"),
		string(metadataJSON),
		ts(occurredAt),
	)
	if err != nil {
		return fmt.Errorf("insert change event: %w", err)
	}
	return nil
}

// classifyTaskTransition derives the operation and metadata recorded for an update.
func classifyTaskTransition(prev, next domain.Task) (domain.ChangeOperation, map[string]string) {
	op := domain.ClassifyTaskChange(prev, next)
	switch op {
	case domain.ChangeOperationReparent:
		return op, map[string]string{
			"from_parent_id": prev.ParentID,
			"to_parent_id":   next.ParentID,
		}
	case domain.ChangeOperationStatus:
		return op, map[string]string{
			"from_status": string(prev.Status),
			"to_status":   string(next.Status),
		}
	case domain.ChangeOperationSync:
		return op, map[string]string{
			"calendar_event_id": next.CalendarEventID,
			"todo_item_id":      next.TodoItemID,
		}
	}
	fields := domain.ChangedTaskFields(prev, next)
	if fields == "" {
		fields = "none"
	}
	return op, map[string]string{"changed_fields": fields}
}

// chooseActorID returns the first non-empty actor id.
func chooseActorID(actorID, fallback string) string {
	if id := strings.TrimSpace(actorID); id != "" {
		return id
	}
	return fallback
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func collectTasks(rows *sql.Rows) ([]domain.Task, error) {
	out := make([]domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTask(s scanner) (domain.Task, error) {
	var (
		t           domain.Task
		parentID    sql.NullString
		assigneeID  sql.NullString
		statusRaw   string
		priorityRaw string
		typeRaw     string
		dueRaw      sql.NullString
		estimated   sql.NullFloat64
		actual      sql.NullFloat64
		milestone   int
		createdRaw  string
		updatedRaw  string
	)
	if err := s.Scan(
		&t.ID,
		&t.ProjectID,
		&parentID,
		&t.CreatorID,
		&t.UpdatedByID,
		&assigneeID,
		&t.Title,
		&t.Description,
		&statusRaw,
		&priorityRaw,
		&typeRaw,
		&dueRaw,
		&estimated,
		&actual,
		&t.SortOrder,
		&milestone,
		&t.CalendarEventID,
		&t.TodoItemID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return domain.Task{}, translateScanErr(err)
	}
	t.ParentID = parentID.String
	t.AssigneeID = assigneeID.String
	t.Status = domain.TaskStatus(statusRaw)
	t.Priority = domain.Priority(priorityRaw)
	t.Type = domain.TaskType(typeRaw)
	t.DueDate = parseNullTS(dueRaw)
	t.EstimatedHours = parseNullFloat(estimated)
	t.ActualHours = parseNullFloat(actual)
	t.IsMilestone = milestone != 0
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	return t, nil
}

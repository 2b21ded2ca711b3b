package sqlite

import (
	"context"
	"database/sql"

	"github.com/hylla/nexus/internal/app"
	"github.com/hylla/nexus/internal/domain"
)

// CreateChecklistItem appends an item after the task's highest sort order ever issued.
func (r *Repository) CreateChecklistItem(ctx context.Context, item domain.ChecklistItem) (domain.ChecklistItem, error) {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var highWater int
		if err := tx.QueryRowContext(ctx, `SELECT checklist_seq FROM tasks WHERE id = ?`, item.TaskID).Scan(&highWater); err != nil {
			return translateScanErr(err)
		}
		existing, err := listChecklistItems(ctx, tx, item.TaskID)
		if err != nil {
			return err
		}
		item.SortOrder = domain.NextChecklistSortOrder(existing, highWater)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO checklist_items(id, task_id, title, is_completed, sort_order, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, item.ID, item.TaskID, item.Title, boolToInt(item.IsCompleted), item.SortOrder, ts(item.CreatedAt), ts(item.UpdatedAt)); err != nil {
			return translateWriteErr(err)
		}
		_, err = tx.ExecContext(ctx, `UPDATE tasks SET checklist_seq = ? WHERE id = ?`, item.SortOrder, item.TaskID)
		return err
	})
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	return item, nil
}

// UpdateChecklistItem rewrites an item's title, completion flag, and sort order.
func (r *Repository) UpdateChecklistItem(ctx context.Context, item domain.ChecklistItem) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE checklist_items
		SET title = ?, is_completed = ?, sort_order = ?, updated_at = ?
		WHERE id = ? AND task_id = ?
	`, item.Title, boolToInt(item.IsCompleted), item.SortOrder, ts(item.UpdatedAt), item.ID, item.TaskID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetChecklistItem returns an item only when it belongs to taskID.
func (r *Repository) GetChecklistItem(ctx context.Context, taskID, itemID string) (domain.ChecklistItem, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, task_id, title, is_completed, sort_order, created_at, updated_at
		FROM checklist_items
		WHERE id = ? AND task_id = ?
	`, itemID, taskID)
	return scanChecklistItem(row)
}

// ListChecklistItems returns a task's checklist in sort order.
func (r *Repository) ListChecklistItems(ctx context.Context, taskID string) ([]domain.ChecklistItem, error) {
	return listChecklistItems(ctx, r.db, taskID)
}

// DeleteChecklistItem removes an item from a task's checklist.
func (r *Repository) DeleteChecklistItem(ctx context.Context, taskID, itemID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM checklist_items WHERE id = ? AND task_id = ?`, itemID, taskID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// CreateComment appends a comment. A missing task returns app.ErrNotFound.
func (r *Repository) CreateComment(ctx context.Context, c domain.Comment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO comments(id, task_id, author_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.TaskID, c.AuthorID, c.Content, ts(c.CreatedAt))
	return translateWriteErr(err)
}

// ListComments returns a task's comments oldest first with author names resolved.
func (r *Repository) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.task_id, c.author_id, COALESCE(u.display_name, ''), c.content, c.created_at
		FROM comments c
		LEFT JOIN users u ON u.id = c.author_id
		WHERE c.task_id = ?
		ORDER BY c.created_at ASC, c.id ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Comment, 0)
	for rows.Next() {
		var (
			c          domain.Comment
			createdRaw string
		)
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.AuthorName, &c.Content, &createdRaw); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTS(createdRaw)
		out = append(out, c)
	}
	return out, rows.Err()
}

const attachmentColumns = `id, task_id, uploader_id, file_name, locator, content_type, size, created_at`

// CreateAttachment records metadata for a stored blob.
func (r *Repository) CreateAttachment(ctx context.Context, a domain.Attachment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attachments(`+attachmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.TaskID, a.UploaderID, a.FileName, a.Locator, a.ContentType, a.Size, ts(a.CreatedAt))
	return translateWriteErr(err)
}

// GetAttachment returns attachment metadata by id.
func (r *Repository) GetAttachment(ctx context.Context, id string) (domain.Attachment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id = ?`, id)
	return scanAttachment(row)
}

// ListAttachments returns a task's attachments, newest first.
func (r *Repository) ListAttachments(ctx context.Context, taskID string) ([]domain.Attachment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+attachmentColumns+`
		FROM attachments
		WHERE task_id = ?
		ORDER BY created_at DESC, id ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Attachment, 0)
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAttachment removes attachment metadata.
func (r *Repository) DeleteAttachment(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// querier is the read contract shared by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}

func listChecklistItems(ctx context.Context, q querier, taskID string) ([]domain.ChecklistItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, task_id, title, is_completed, sort_order, created_at, updated_at
		FROM checklist_items
		WHERE task_id = ?
		ORDER BY sort_order ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChecklistItem, 0)
	for rows.Next() {
		item, err := scanChecklistItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanChecklistItem(s scanner) (domain.ChecklistItem, error) {
	var (
		item       domain.ChecklistItem
		completed  int
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&item.ID, &item.TaskID, &item.Title, &completed, &item.SortOrder, &createdRaw, &updatedRaw); err != nil {
		return domain.ChecklistItem{}, translateScanErr(err)
	}
	item.IsCompleted = completed != 0
	item.CreatedAt = parseTS(createdRaw)
	item.UpdatedAt = parseTS(updatedRaw)
	return item, nil
}

func scanAttachment(s scanner) (domain.Attachment, error) {
	var (
		a          domain.Attachment
		createdRaw string
	)
	if err := s.Scan(&a.ID, &a.TaskID, &a.UploaderID, &a.FileName, &a.Locator, &a.ContentType, &a.Size, &createdRaw); err != nil {
		return domain.Attachment{}, translateScanErr(err)
	}
	a.CreatedAt = parseTS(createdRaw)
	return a, nil
}

var _ app.Repository = (*Repository)(nil)

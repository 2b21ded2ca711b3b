package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hylla/nexus/internal/app"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// connPragmas apply to every pooled connection, not just the one that ran migrate.
const connPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Repository implements app.Repository over one sqlite database.
type Repository struct {
	db *sql.DB
}

// Open opens (and migrates) the database file at path.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	return open(path + "?" + connPragmas + "&_pragma=journal_mode(wal)")
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	return open("file:nexus-" + uuid.NewString() + "?mode=memory&cache=shared&" + connPragmas)
}

func open(dsn string) (*Repository, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite serializes writers; one connection keeps transactions from tripping SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate creates the schema idempotently.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			subject TEXT UNIQUE,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			avatar_url TEXT NOT NULL DEFAULT '',
			job_title TEXT NOT NULL DEFAULT '',
			department TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS workspaces (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			teams_channel_id TEXT NOT NULL DEFAULT '',
			sharepoint_site_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS workspace_members (
			workspace_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			joined_at TEXT NOT NULL,
			PRIMARY KEY(workspace_id, user_id),
			FOREIGN KEY(workspace_id) REFERENCES workspaces(id) ON DELETE CASCADE,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE RESTRICT
		);`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			start_date TEXT,
			end_date TEXT,
			budget TEXT,
			last_summary TEXT NOT NULL DEFAULT '',
			risk_score INTEGER,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(workspace_id) REFERENCES workspaces(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			parent_id TEXT,
			creator_id TEXT NOT NULL,
			updated_by_id TEXT NOT NULL DEFAULT '',
			assignee_id TEXT,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			type TEXT NOT NULL,
			due_date TEXT,
			estimated_hours REAL,
			actual_hours REAL,
			sort_order INTEGER NOT NULL DEFAULT 0,
			is_milestone INTEGER NOT NULL DEFAULT 0,
			calendar_event_id TEXT NOT NULL DEFAULT '',
			todo_item_id TEXT NOT NULL DEFAULT '',
			checklist_seq INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE,
			FOREIGN KEY(parent_id) REFERENCES tasks(id) ON DELETE CASCADE,
			FOREIGN KEY(creator_id) REFERENCES users(id) ON DELETE RESTRICT,
			FOREIGN KEY(assignee_id) REFERENCES users(id) ON DELETE RESTRICT
		);`,
		`CREATE TABLE IF NOT EXISTS checklist_items (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			title TEXT NOT NULL,
			is_completed INTEGER NOT NULL DEFAULT 0,
			sort_order INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS comments (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE,
			FOREIGN KEY(author_id) REFERENCES users(id) ON DELETE RESTRICT
		);`,
		`CREATE TABLE IF NOT EXISTS attachments (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			uploader_id TEXT NOT NULL,
			file_name TEXT NOT NULL,
			locator TEXT NOT NULL,
			content_type TEXT NOT NULL,
			size INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE,
			FOREIGN KEY(uploader_id) REFERENCES users(id) ON DELETE RESTRICT
		);`,
		// change_events.task_id outlives the task so deletions stay visible in the ledger.
		`CREATE TABLE IF NOT EXISTS change_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_members_user ON workspace_members(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_projects_workspace_updated ON projects(workspace_id, updated_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project_parent ON tasks(project_id, parent_id, sort_order);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id);`,
		`CREATE INDEX IF NOT EXISTS idx_checklist_task_order ON checklist_items(task_id, sort_order);`,
		`CREATE INDEX IF NOT EXISTS idx_comments_task_created ON comments(task_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_attachments_task_created ON attachments(task_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_change_events_project_created_at ON change_events(project_id, created_at DESC, id DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// queryRower represents a query-only DB contract used by DB and Tx implementations.
type queryRower interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// withTx runs fn in a transaction, rolling back on error.
func (r *Repository) withTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// translateNoRows maps a zero-row write onto app.ErrNotFound.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// translateScanErr maps sql.ErrNoRows onto app.ErrNotFound.
func translateScanErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return app.ErrNotFound
	}
	return err
}

// translateWriteErr maps constraint failures onto app error kinds.
func translateWriteErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"), strings.Contains(msg, "PRIMARY KEY constraint failed"):
		return fmt.Errorf("%w: %v", app.ErrConflict, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: referenced row missing: %v", app.ErrNotFound, err)
	default:
		return err
	}
}

// ts formats a timestamp for storage.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTS formats an optional timestamp for storage.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses a stored timestamp.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses an optional stored timestamp.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}

// nullableString stores "" as NULL.
func nullableString(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

// nullableFloat stores a nil pointer as NULL.
func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// parseNullFloat reads an optional float column.
func parseNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// placeholders returns "?, ?, ..." for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hylla/nexus/internal/domain"
	"github.com/shopspring/decimal"
)

const projectColumns = `id, workspace_id, name, description, status, start_date, end_date, budget, last_summary, risk_score, created_at, updated_at`

// CreateProject inserts a project. A missing workspace returns app.ErrNotFound.
func (r *Repository) CreateProject(ctx context.Context, p domain.Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects(`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, projectArgs(p)...)
	return translateWriteErr(err)
}

// UpdateProject rewrites a project's mutable fields.
func (r *Repository) UpdateProject(ctx context.Context, p domain.Project) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET name = ?, description = ?, status = ?, start_date = ?, end_date = ?, budget = ?, last_summary = ?, risk_score = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, p.Description, string(p.Status), nullableTS(p.StartDate), nullableTS(p.EndDate), nullableBudget(p.Budget), p.LastSummary, nullableRisk(p.RiskScore), ts(p.UpdatedAt), p.ID)
	if err != nil {
		return translateWriteErr(err)
	}
	return translateNoRows(res)
}

// GetProject returns a project by id.
func (r *Repository) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// ListProjects returns a workspace's projects, most recently updated first.
func (r *Repository) ListProjects(ctx context.Context, workspaceID string) ([]domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE workspace_id = ?
		ORDER BY updated_at DESC, id ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProject removes a project and everything beneath it.
func (r *Repository) DeleteProject(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

func projectArgs(p domain.Project) []any {
	return []any{
		p.ID,
		p.WorkspaceID,
		p.Name,
		p.Description,
		string(p.Status),
		nullableTS(p.StartDate),
		nullableTS(p.EndDate),
		nullableBudget(p.Budget),
		p.LastSummary,
		nullableRisk(p.RiskScore),
		ts(p.CreatedAt),
		ts(p.UpdatedAt),
	}
}

// nullableBudget stores the exact decimal text so no float rounding occurs.
func nullableBudget(v *decimal.Decimal) any {
	if v == nil {
		return nil
	}
	return v.String()
}

func nullableRisk(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func scanProject(s scanner) (domain.Project, error) {
	var (
		p          domain.Project
		statusRaw  string
		startRaw   sql.NullString
		endRaw     sql.NullString
		budgetRaw  sql.NullString
		riskRaw    sql.NullInt64
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Description, &statusRaw, &startRaw, &endRaw, &budgetRaw, &p.LastSummary, &riskRaw, &createdRaw, &updatedRaw); err != nil {
		return domain.Project{}, translateScanErr(err)
	}
	status, err := domain.ParseProjectStatus(statusRaw)
	if err != nil {
		status = domain.ProjectStatusPlanning
	}
	p.Status = status
	p.StartDate = parseNullTS(startRaw)
	p.EndDate = parseNullTS(endRaw)
	if budgetRaw.Valid && budgetRaw.String != "" {
		budget, err := decimal.NewFromString(budgetRaw.String)
		if err != nil {
			return domain.Project{}, fmt.Errorf("decode projects.budget: %w", err)
		}
		p.Budget = &budget
	}
	if riskRaw.Valid {
		risk := int(riskRaw.Int64)
		p.RiskScore = &risk
	}
	p.CreatedAt = parseTS(createdRaw)
	p.UpdatedAt = parseTS(updatedRaw)
	return p, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hylla/nexus/internal/app"
	"github.com/hylla/nexus/internal/domain"
)

const userColumns = `id, subject, email, display_name, avatar_url, job_title, department, created_at, updated_at`

// CreateUser inserts a user. Duplicate subjects or emails return app.ErrConflict.
func (r *Repository) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users(`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, nullableString(u.Subject), u.Email, u.DisplayName, u.AvatarURL, u.JobTitle, u.Department, ts(u.CreatedAt), ts(u.UpdatedAt))
	return translateWriteErr(err)
}

// UpdateUser rewrites a user's mutable fields.
func (r *Repository) UpdateUser(ctx context.Context, u domain.User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET subject = ?, email = ?, display_name = ?, avatar_url = ?, job_title = ?, department = ?, updated_at = ?
		WHERE id = ?
	`, nullableString(u.Subject), u.Email, u.DisplayName, u.AvatarURL, u.JobTitle, u.Department, ts(u.UpdatedAt), u.ID)
	if err != nil {
		return translateWriteErr(err)
	}
	return translateNoRows(res)
}

// GetUser returns a user by id.
func (r *Repository) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserBySubject returns the user linked to an identity-provider subject.
func (r *Repository) GetUserBySubject(ctx context.Context, subject string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE subject = ?`, subject)
	return scanUser(row)
}

// GetUserByEmail returns a user by normalized email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// ListUsers returns up to limit users ordered by display name.
func (r *Repository) ListUsers(ctx context.Context, limit int) ([]domain.User, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY display_name ASC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// ListUsersByIDs returns the users whose ids are listed. Unknown ids are skipped.
func (r *Repository) ListUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id IN (`+placeholders(len(ids))+`)
		ORDER BY display_name ASC, id ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// CreateWorkspace stores the workspace and its first owner in one transaction.
func (r *Repository) CreateWorkspace(ctx context.Context, ws domain.Workspace, owner domain.Member) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO workspaces(id, name, slug, description, teams_channel_id, sharepoint_site_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, ws.ID, ws.Name, ws.Slug, ws.Description, ws.TeamsChannelID, ws.SharePointSiteID, ts(ws.CreatedAt), ts(ws.UpdatedAt)); err != nil {
			return translateWriteErr(err)
		}
		return insertMember(ctx, tx, owner)
	})
}

const workspaceColumns = `w.id, w.name, w.slug, w.description, w.teams_channel_id, w.sharepoint_site_id, w.created_at, w.updated_at`

// GetWorkspace returns a workspace by id.
func (r *Repository) GetWorkspace(ctx context.Context, id string) (domain.Workspace, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+workspaceColumns+` FROM workspaces w WHERE w.id = ?`, id)
	return scanWorkspace(row)
}

// GetWorkspaceBySlug returns a workspace by its unique slug.
func (r *Repository) GetWorkspaceBySlug(ctx context.Context, slug string) (domain.Workspace, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+workspaceColumns+` FROM workspaces w WHERE w.slug = ?`, slug)
	return scanWorkspace(row)
}

// ListWorkspacesForUser returns the workspaces userID belongs to.
func (r *Repository) ListWorkspacesForUser(ctx context.Context, userID string) ([]domain.Workspace, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+workspaceColumns+`
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = ?
		ORDER BY w.name ASC, w.id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.Workspace, 0)
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// DeleteWorkspace removes a workspace with its memberships, projects, and tasks.
func (r *Repository) DeleteWorkspace(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// CreateMember inserts a membership. An existing (workspace, user) pair returns app.ErrConflict.
func (r *Repository) CreateMember(ctx context.Context, m domain.Member) error {
	return insertMember(ctx, r.db, m)
}

// GetMember returns one membership.
func (r *Repository) GetMember(ctx context.Context, workspaceID, userID string) (domain.Member, error) {
	var (
		m         domain.Member
		roleRaw   string
		joinedRaw string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT workspace_id, user_id, role, joined_at
		FROM workspace_members
		WHERE workspace_id = ? AND user_id = ?
	`, workspaceID, userID).Scan(&m.WorkspaceID, &m.UserID, &roleRaw, &joinedRaw)
	if err != nil {
		return domain.Member{}, translateScanErr(err)
	}
	m.Role = domain.ParseRoleOrDefault(roleRaw)
	m.JoinedAt = parseTS(joinedRaw)
	return m, nil
}

// ListMembers returns a workspace's members joined with their profiles in join order.
func (r *Repository) ListMembers(ctx context.Context, workspaceID string) ([]domain.MemberProfile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.workspace_id, m.user_id, m.role, m.joined_at, u.email, u.display_name, u.avatar_url, u.job_title, u.department
		FROM workspace_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.workspace_id = ?
		ORDER BY m.joined_at ASC, CASE m.role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 WHEN 'member' THEN 2 ELSE 3 END, u.id ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.MemberProfile, 0)
	for rows.Next() {
		var (
			p         domain.MemberProfile
			roleRaw   string
			joinedRaw string
		)
		if err := rows.Scan(&p.WorkspaceID, &p.UserID, &roleRaw, &joinedRaw, &p.Email, &p.DisplayName, &p.AvatarURL, &p.JobTitle, &p.Department); err != nil {
			return nil, err
		}
		p.Role = domain.ParseRoleOrDefault(roleRaw)
		p.JoinedAt = parseTS(joinedRaw)
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateMember rewrites a membership's role. Demoting the last owner returns app.ErrLastOwner.
func (r *Repository) UpdateMember(ctx context.Context, m domain.Member) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		current, err := memberRole(ctx, tx, m.WorkspaceID, m.UserID)
		if err != nil {
			return err
		}
		if current == domain.RoleOwner && m.Role != domain.RoleOwner {
			owners, err := countOwnersTx(ctx, tx, m.WorkspaceID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return app.ErrLastOwner
			}
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE workspace_members SET role = ? WHERE workspace_id = ? AND user_id = ?
		`, string(m.Role), m.WorkspaceID, m.UserID)
		if err != nil {
			return err
		}
		return translateNoRows(res)
	})
}

// DeleteMember removes a non-owner membership.
func (r *Repository) DeleteMember(ctx context.Context, workspaceID, userID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		current, err := memberRole(ctx, tx, workspaceID, userID)
		if err != nil {
			return err
		}
		if current == domain.RoleOwner {
			return app.ErrOwnerRemoval
		}
		res, err := tx.ExecContext(ctx, `
			DELETE FROM workspace_members WHERE workspace_id = ? AND user_id = ?
		`, workspaceID, userID)
		if err != nil {
			return err
		}
		return translateNoRows(res)
	})
}

// memberRole reads one membership's role inside a transaction.
func memberRole(ctx context.Context, q queryRower, workspaceID, userID string) (domain.Role, error) {
	var role string
	err := q.QueryRowContext(ctx, `
		SELECT role FROM workspace_members WHERE workspace_id = ? AND user_id = ?
	`, workspaceID, userID).Scan(&role)
	if err != nil {
		return "", translateScanErr(err)
	}
	return domain.Role(role), nil
}

func countOwnersTx(ctx context.Context, q queryRower, workspaceID string) (int, error) {
	var owners int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM workspace_members WHERE workspace_id = ? AND role = ?
	`, workspaceID, string(domain.RoleOwner)).Scan(&owners)
	if err != nil {
		return 0, fmt.Errorf("count owners: %w", err)
	}
	return owners, nil
}

func insertMember(ctx context.Context, execer execerContext, m domain.Member) error {
	_, err := execer.ExecContext(ctx, `
		INSERT INTO workspace_members(workspace_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)
	`, m.WorkspaceID, m.UserID, string(m.Role), ts(m.JoinedAt))
	if err != nil {
		return fmt.Errorf("insert member: %w", translateWriteErr(err))
	}
	return nil
}

func scanUser(s scanner) (domain.User, error) {
	var (
		u          domain.User
		subject    sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&u.ID, &subject, &u.Email, &u.DisplayName, &u.AvatarURL, &u.JobTitle, &u.Department, &createdRaw, &updatedRaw); err != nil {
		return domain.User{}, translateScanErr(err)
	}
	u.Subject = subject.String
	u.CreatedAt = parseTS(createdRaw)
	u.UpdatedAt = parseTS(updatedRaw)
	return u, nil
}

func collectUsers(rows *sql.Rows) ([]domain.User, error) {
	out := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanWorkspace(s scanner) (domain.Workspace, error) {
	var (
		ws         domain.Workspace
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&ws.ID, &ws.Name, &ws.Slug, &ws.Description, &ws.TeamsChannelID, &ws.SharePointSiteID, &createdRaw, &updatedRaw); err != nil {
		return domain.Workspace{}, translateScanErr(err)
	}
	ws.CreatedAt = parseTS(createdRaw)
	ws.UpdatedAt = parseTS(updatedRaw)
	return ws, nil
}

package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProjectStatus is a project's lifecycle state.
type ProjectStatus string

// ProjectStatus values.
const (
	ProjectStatusPlanning  ProjectStatus = "planning"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusArchived  ProjectStatus = "archived"
)

var validProjectStatuses = []ProjectStatus{
	ProjectStatusPlanning,
	ProjectStatusActive,
	ProjectStatusOnHold,
	ProjectStatusCompleted,
	ProjectStatusArchived,
}

// ParseProjectStatus parses one project status name.
func ParseProjectStatus(raw string) (ProjectStatus, error) {
	status := ProjectStatus(normalizeEnum(raw))
	if !slices.Contains(validProjectStatuses, status) {
		return "", ErrInvalidProjectStatus
	}
	return status, nil
}

// Project represents project data used by this package.
type Project struct {
	ID          string
	WorkspaceID string
	Name        string
	Description string
	Status      ProjectStatus
	StartDate   *time.Time
	EndDate     *time.Time
	Budget      *decimal.Decimal
	LastSummary string
	RiskScore   *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectInput holds input values for project creation.
type ProjectInput struct {
	ID          string
	WorkspaceID string
	Name        string
	Description string
	Status      ProjectStatus
	StartDate   *time.Time
	EndDate     *time.Time
	Budget      *decimal.Decimal
	RiskScore   *int
}

// NewProject constructs a new value for this package.
func NewProject(in ProjectInput, now time.Time) (Project, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.WorkspaceID = strings.TrimSpace(in.WorkspaceID)
	if in.ID == "" || in.WorkspaceID == "" {
		return Project{}, ErrInvalidID
	}
	if in.Status == "" {
		in.Status = ProjectStatusPlanning
	}
	p := Project{
		ID:          in.ID,
		WorkspaceID: in.WorkspaceID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Status:      in.Status,
		StartDate:   normalizeDate(in.StartDate),
		EndDate:     normalizeDate(in.EndDate),
		Budget:      in.Budget,
		RiskScore:   in.RiskScore,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	if err := p.validate(); err != nil {
		return Project{}, err
	}
	return p, nil
}

// ProjectPatch carries optional project field updates. Nil fields are left unchanged.
type ProjectPatch struct {
	Name        *string
	Description *string
	Status      *ProjectStatus
	StartDate   *time.Time
	EndDate     *time.Time
	Budget      *decimal.Decimal
	LastSummary *string
	RiskScore   *int
}

// ApplyPatch merges patch into p and bumps UpdatedAt. p is unchanged on error.
func (p *Project) ApplyPatch(patch ProjectPatch, now time.Time) error {
	next := *p
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.StartDate != nil {
		next.StartDate = normalizeDate(patch.StartDate)
	}
	if patch.EndDate != nil {
		next.EndDate = normalizeDate(patch.EndDate)
	}
	if patch.Budget != nil {
		budget := *patch.Budget
		next.Budget = &budget
	}
	if patch.LastSummary != nil {
		next.LastSummary = strings.TrimSpace(*patch.LastSummary)
	}
	if patch.RiskScore != nil {
		score := *patch.RiskScore
		next.RiskScore = &score
	}
	if err := next.validate(); err != nil {
		return err
	}
	next.UpdatedAt = now.UTC()
	*p = next
	return nil
}

func (p Project) validate() error {
	if p.Name == "" {
		return ErrInvalidName
	}
	if !slices.Contains(validProjectStatuses, p.Status) {
		return ErrInvalidProjectStatus
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return ErrInvalidDateRange
	}
	if p.Budget != nil && p.Budget.IsNegative() {
		return ErrInvalidBudget
	}
	if p.RiskScore != nil && (*p.RiskScore < 0 || *p.RiskScore > 100) {
		return ErrInvalidRiskScore
	}
	return nil
}

func normalizeDate(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	out := ts.UTC().Truncate(time.Second)
	return &out
}

// normalizeEnum maps user-facing spellings like "InProgress" or "in-progress" onto snake_case values.
func normalizeEnum(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r == '-' || r == ' ':
			b.WriteByte('_')
		case r >= 'A' && r <= 'Z':
			if i > 0 && raw[i-1] >= 'a' && raw[i-1] <= 'z' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

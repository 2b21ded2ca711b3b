package domain

import (
	"strings"
	"time"
)

// Workspace is the tenant boundary owning projects and memberships.
type Workspace struct {
	ID               string
	Name             string
	Slug             string
	Description      string
	TeamsChannelID   string
	SharePointSiteID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// WorkspaceInput holds input values for workspace creation.
type WorkspaceInput struct {
	ID               string
	Name             string
	Slug             string
	Description      string
	TeamsChannelID   string
	SharePointSiteID string
}

// NewWorkspace constructs a normalized workspace. An empty slug is derived from the name.
func NewWorkspace(in WorkspaceInput, now time.Time) (Workspace, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	if in.ID == "" {
		return Workspace{}, ErrInvalidID
	}
	if in.Name == "" {
		return Workspace{}, ErrInvalidName
	}
	slug := normalizeSlug(in.Slug)
	if strings.TrimSpace(in.Slug) == "" {
		slug = normalizeSlug(in.Name)
	}
	if slug == "" {
		return Workspace{}, ErrInvalidSlug
	}
	return Workspace{
		ID:               in.ID,
		Name:             in.Name,
		Slug:             slug,
		Description:      strings.TrimSpace(in.Description),
		TeamsChannelID:   strings.TrimSpace(in.TeamsChannelID),
		SharePointSiteID: strings.TrimSpace(in.SharePointSiteID),
		CreatedAt:        now.UTC(),
		UpdatedAt:        now.UTC(),
	}, nil
}

// normalizeSlug lowercases s and collapses every non-alphanumeric run into one dash.
func normalizeSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	prevDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/nexus/internal/adapters/server/common"
	"github.com/hylla/nexus/internal/app"
	"github.com/hylla/nexus/internal/domain"
	"github.com/shopspring/decimal"
)

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.CurrentUser(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.NewUserView(user))
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	users, err := h.svc.ListUsers(r.Context(), limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	out := make([]common.UserView, 0, len(users))
	for _, u := range users {
		out = append(out, common.NewUserView(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

type createWorkspaceRequest struct {
	Name             string `json:"name"`
	Slug             string `json:"slug"`
	Description      string `json:"description"`
	TeamsChannelID   string `json:"teamsChannelId"`
	SharePointSiteID string `json:"sharePointSiteId"`
}

func (h *Handler) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	workspaces, err := h.svc.ListWorkspaces(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	out := make([]common.WorkspaceView, 0, len(workspaces))
	for _, ws := range workspaces {
		out = append(out, common.NewWorkspaceView(ws))
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspaces": out})
}

func (h *Handler) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	ws, err := h.svc.CreateWorkspace(r.Context(), app.CreateWorkspaceInput{
		Name:             req.Name,
		Slug:             req.Slug,
		Description:      req.Description,
		TeamsChannelID:   req.TeamsChannelID,
		SharePointSiteID: req.SharePointSiteID,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.NewWorkspaceView(ws))
}

func (h *Handler) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := h.svc.GetWorkspace(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.NewWorkspaceView(ws))
}

func (h *Handler) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteWorkspace(r.Context(), r.PathValue("id")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type projectRequest struct {
	WorkspaceID string           `json:"workspaceId"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Status      *string          `json:"status"`
	StartDate   *string          `json:"startDate"`
	EndDate     *string          `json:"endDate"`
	Budget      *decimal.Decimal `json:"budget"`
	LastSummary *string          `json:"lastSummary"`
	RiskScore   *int             `json:"riskScore"`
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := requireQuery(r, "workspaceId")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	projects, err := h.svc.ListProjects(r.Context(), workspaceID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	out := make([]common.ProjectView, 0, len(projects))
	for _, p := range projects {
		out = append(out, common.NewProjectView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": out})
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	in := app.CreateProjectInput{
		WorkspaceID: strings.TrimSpace(req.WorkspaceID),
		Name:        deref(req.Name),
		Description: deref(req.Description),
		Budget:      req.Budget,
		RiskScore:   req.RiskScore,
	}
	if in.WorkspaceID == "" {
		writeErrorFrom(w, fmt.Errorf("workspaceId is required: %w", common.ErrInvalidRequest))
		return
	}
	var err error
	if req.Status != nil && strings.TrimSpace(*req.Status) != "" {
		if in.Status, err = domain.ParseProjectStatus(*req.Status); err != nil {
			writeErrorFrom(w, err)
			return
		}
	}
	if in.StartDate, err = parseTimeValue("startDate", deref(req.StartDate)); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if in.EndDate, err = parseTimeValue("endDate", deref(req.EndDate)); err != nil {
		writeErrorFrom(w, err)
		return
	}
	project, err := h.svc.CreateProject(r.Context(), in)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.NewProjectView(project))
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.svc.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.NewProjectView(project))
}

func (h *Handler) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	patch := domain.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
		Budget:      req.Budget,
		LastSummary: req.LastSummary,
		RiskScore:   req.RiskScore,
	}
	if req.Status != nil {
		status, err := domain.ParseProjectStatus(*req.Status)
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		patch.Status = &status
	}
	var err error
	if req.StartDate != nil {
		if patch.StartDate, err = parseTimeValue("startDate", *req.StartDate); err != nil {
			writeErrorFrom(w, err)
			return
		}
	}
	if req.EndDate != nil {
		if patch.EndDate, err = parseTimeValue("endDate", *req.EndDate); err != nil {
			writeErrorFrom(w, err)
			return
		}
	}
	project, err := h.svc.UpdateProject(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.NewProjectView(project))
}

func (h *Handler) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleProjectActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	events, err := h.svc.ListProjectActivity(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": common.NewActivityViews(events)})
}

type memberRequest struct {
	WorkspaceID string `json:"workspaceId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := requireQuery(r, "workspaceId")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	members, err := h.svc.ListMembers(r.Context(), workspaceID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	out := make([]common.MemberView, 0, len(members))
	for _, m := range members {
		out = append(out, common.NewMemberView(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": out})
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	member, err := h.svc.AddMember(r.Context(), app.AddMemberInput{
		WorkspaceID: req.WorkspaceID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        req.Role,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.NewMemberView(member))
}

func (h *Handler) handleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	member, err := h.svc.UpdateMemberRole(r.Context(), req.WorkspaceID, r.PathValue("userId"), req.Role)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workspaceId": member.WorkspaceID,
		"userId":      member.UserID,
		"role":        member.Role,
		"joinedAt":    member.JoinedAt,
	})
}

func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := requireQuery(r, "workspaceId")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	if err := h.svc.RemoveMember(r.Context(), workspaceID, r.PathValue("userId")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWorkload(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := requireQuery(r, "workspaceId")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	rows, err := h.svc.Workload(r.Context(), workspaceID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workload": common.NewWorkloadViews(rows)})
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/nexus/internal/adapters/server/common"
	"github.com/hylla/nexus/internal/app"
	"github.com/hylla/nexus/internal/domain"
)

// taskRequest carries create and update fields. Nil pointers leave a field unchanged on update;
// an empty parentId detaches and an empty assigneeId unassigns.
type taskRequest struct {
	ProjectID      string   `json:"projectId"`
	ParentID       *string  `json:"parentId"`
	AssigneeID     *string  `json:"assigneeId"`
	Title          *string  `json:"title"`
	Description    *string  `json:"description"`
	Status         *string  `json:"status"`
	Priority       *string  `json:"priority"`
	Type           *string  `json:"type"`
	DueDate        *string  `json:"dueDate"`
	EstimatedHours *float64 `json:"estimatedHours"`
	ActualHours    *float64 `json:"actualHours"`
	SortOrder      *int     `json:"sortOrder"`
	IsMilestone    *bool    `json:"isMilestone"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type checklistRequest struct {
	Title       *string `json:"title"`
	IsCompleted *bool   `json:"isCompleted"`
	SortOrder   *int    `json:"sortOrder"`
}

type commentRequest struct {
	Content string `json:"content"`
}

func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	projectID, err := requireQuery(r, "projectId")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	switch view := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("view"))); view {
	case "", "tree":
		tree, err := h.svc.ListTaskTree(r.Context(), projectID)
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tasks": common.NewTaskTreeView(tree)})
	case "flat":
		tasks, err := h.svc.ListTasks(r.Context(), projectID)
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tasks": common.NewTaskViews(tasks)})
	default:
		writeErrorFrom(w, fmt.Errorf("view %q must be tree or flat: %w", view, common.ErrInvalidRequest))
	}
}

func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	in, err := req.createInput()
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.svc.CreateTask(r.Context(), in)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.NewTaskView(task))
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetTaskDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.NewTaskDetailView(detail))
}

func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.svc.UpdateTask(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.NewTaskView(task))
}

func (h *Handler) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	status, err := domain.ParseTaskStatus(req.Status)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.svc.UpdateTaskStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.NewTaskView(task))
}

func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSyncCalendar(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	if err := h.svc.SyncTaskToCalendar(r.Context(), taskID); err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"taskId": taskID, "target": app.SyncKindCalendar, "queued": true})
}

func (h *Handler) handleSyncTodo(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	if err := h.svc.SyncTaskToTodo(r.Context(), taskID); err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"taskId": taskID, "target": app.SyncKindTodo, "queued": true})
}

func (h *Handler) handleListChecklist(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListChecklist(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": common.NewChecklistViews(items)})
}

func (h *Handler) handleAddChecklistItem(w http.ResponseWriter, r *http.Request) {
	var req checklistRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	item, err := h.svc.AddChecklistItem(r.Context(), r.PathValue("id"), deref(req.Title))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.NewChecklistItemView(item))
}

func (h *Handler) handleUpdateChecklistItem(w http.ResponseWriter, r *http.Request) {
	var req checklistRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	item, err := h.svc.UpdateChecklistItem(r.Context(), r.PathValue("id"), r.PathValue("itemId"), domain.ChecklistPatch{
		Title:       req.Title,
		IsCompleted: req.IsCompleted,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.NewChecklistItemView(item))
}

func (h *Handler) handleDeleteChecklistItem(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteChecklistItem(r.Context(), r.PathValue("id"), r.PathValue("itemId")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.svc.ListComments(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	out := make([]common.CommentView, 0, len(comments))
	for _, c := range comments {
		out = append(out, common.NewCommentView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": out})
}

func (h *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	comment, err := h.svc.AddComment(r.Context(), r.PathValue("id"), req.Content)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, common.NewCommentView(comment))
}

func (req taskRequest) createInput() (app.CreateTaskInput, error) {
	in := app.CreateTaskInput{
		ProjectID:      strings.TrimSpace(req.ProjectID),
		ParentID:       deref(req.ParentID),
		AssigneeID:     deref(req.AssigneeID),
		Title:          deref(req.Title),
		Description:    deref(req.Description),
		EstimatedHours: req.EstimatedHours,
	}
	if in.ProjectID == "" {
		return app.CreateTaskInput{}, fmt.Errorf("projectId is required: %w", common.ErrInvalidRequest)
	}
	if req.IsMilestone != nil {
		in.IsMilestone = *req.IsMilestone
	}
	var err error
	if raw := strings.TrimSpace(deref(req.Status)); raw != "" {
		if in.Status, err = domain.ParseTaskStatus(raw); err != nil {
			return app.CreateTaskInput{}, err
		}
	}
	if raw := strings.TrimSpace(deref(req.Priority)); raw != "" {
		if in.Priority, err = domain.ParsePriority(raw); err != nil {
			return app.CreateTaskInput{}, err
		}
	}
	if raw := strings.TrimSpace(deref(req.Type)); raw != "" {
		if in.Type, err = domain.ParseTaskType(raw); err != nil {
			return app.CreateTaskInput{}, err
		}
	}
	if in.DueDate, err = parseTimeValue("dueDate", deref(req.DueDate)); err != nil {
		return app.CreateTaskInput{}, err
	}
	return in, nil
}

func (req taskRequest) patch() (domain.TaskPatch, error) {
	patch := domain.TaskPatch{
		Title:          req.Title,
		Description:    req.Description,
		AssigneeID:     req.AssigneeID,
		ParentID:       req.ParentID,
		EstimatedHours: req.EstimatedHours,
		ActualHours:    req.ActualHours,
		SortOrder:      req.SortOrder,
		IsMilestone:    req.IsMilestone,
	}
	if req.Status != nil {
		status, err := domain.ParseTaskStatus(*req.Status)
		if err != nil {
			return domain.TaskPatch{}, err
		}
		patch.Status = &status
	}
	if req.Priority != nil {
		priority, err := domain.ParsePriority(*req.Priority)
		if err != nil {
			return domain.TaskPatch{}, err
		}
		patch.Priority = &priority
	}
	if req.Type != nil {
		kind, err := domain.ParseTaskType(*req.Type)
		if err != nil {
			return domain.TaskPatch{}, err
		}
		patch.Type = &kind
	}
	if req.DueDate != nil {
		due, err := parseTimeValue("dueDate", *req.DueDate)
		if err != nil {
			return domain.TaskPatch{}, err
		}
		// "" clears, like parentId and assigneeId
		patch.DueDate = due
		patch.ClearDueDate = due == nil
	}
	return patch, nil
}

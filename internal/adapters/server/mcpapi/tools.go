package mcpapi

import (
	"context"
	"strings"
	"time"

	"github.com/hylla/nexus/internal/adapters/server/common"
	"github.com/hylla/nexus/internal/app"
	"github.com/hylla/nexus/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

func statusNames() []string {
	statuses := domain.Statuses()
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

// registerProjectTools registers `nexus.list_projects`.
func registerProjectTools(srv *mcpserver.MCPServer, svc *app.Service) {
	srv.AddTool(
		mcp.NewTool(
			"nexus.list_projects",
			mcp.WithDescription("List projects in one workspace, most recently updated first."),
			mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			workspaceID, err := req.RequireString("workspace_id")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			projects, err := svc.ListProjects(ctx, workspaceID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			views := make([]common.ProjectView, 0, len(projects))
			for _, p := range projects {
				views = append(views, common.NewProjectView(p))
			}
			return jsonResult("list_projects", map[string]any{"projects": views})
		},
	)
}

// registerTaskTools registers task tree, creation, status, and checklist tools.
func registerTaskTools(srv *mcpserver.MCPServer, svc *app.Service) {
	srv.AddTool(
		mcp.NewTool(
			"nexus.list_tasks",
			mcp.WithDescription("Return the task tree of one project with nested subtasks."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projectID, err := req.RequireString("project_id")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			tree, err := svc.ListTaskTree(ctx, projectID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_tasks", map[string]any{"tasks": common.NewTaskTreeView(tree)})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"nexus.create_task",
			mcp.WithDescription("Create a task, optionally under a parent task in the same project."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
			mcp.WithString("description", mcp.Description("Markdown description")),
			mcp.WithString("parent_id", mcp.Description("Parent task identifier")),
			mcp.WithString("assignee_id", mcp.Description("Assignee user identifier")),
			mcp.WithString("status", mcp.Description("Initial status"), mcp.Enum(statusNames()...)),
			mcp.WithString("priority", mcp.Description("Priority"), mcp.Enum("low", "medium", "high", "urgent")),
			mcp.WithString("type", mcp.Description("Task type"), mcp.Enum("roadmap_phase", "milestone", "task", "subtask")),
			mcp.WithString("due_date", mcp.Description("Due date, RFC3339 or YYYY-MM-DD")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projectID, err := req.RequireString("project_id")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			title, err := req.RequireString("title")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			in := app.CreateTaskInput{
				ProjectID:   projectID,
				Title:       title,
				Description: req.GetString("description", ""),
				ParentID:    req.GetString("parent_id", ""),
				AssigneeID:  req.GetString("assignee_id", ""),
			}
			if raw := req.GetString("status", ""); raw != "" {
				if in.Status, err = domain.ParseTaskStatus(raw); err != nil {
					return toolResultFromError(err), nil
				}
			}
			if raw := req.GetString("priority", ""); raw != "" {
				if in.Priority, err = domain.ParsePriority(raw); err != nil {
					return toolResultFromError(err), nil
				}
			}
			if raw := req.GetString("type", ""); raw != "" {
				if in.Type, err = domain.ParseTaskType(raw); err != nil {
					return toolResultFromError(err), nil
				}
			}
			if raw := strings.TrimSpace(req.GetString("due_date", "")); raw != "" {
				due, ok := parseDue(raw)
				if !ok {
					return mcp.NewToolResultError("invalid_request: due_date must be RFC3339 or YYYY-MM-DD"), nil
				}
				in.DueDate = &due
			}
			task, err := svc.CreateTask(ctx, in)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_task", common.NewTaskView(task))
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"nexus.update_task_status",
			mcp.WithDescription("Move a task to another status. Any status may follow any other."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("status", mcp.Required(), mcp.Description("Target status"), mcp.Enum(statusNames()...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			raw, err := req.RequireString("status")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			status, err := domain.ParseTaskStatus(raw)
			if err != nil {
				return toolResultFromError(err), nil
			}
			task, err := svc.UpdateTaskStatus(ctx, taskID, status)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("update_task_status", common.NewTaskView(task))
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"nexus.add_checklist_item",
			mcp.WithDescription("Append a checklist item to a task."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Checklist item text")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			title, err := req.RequireString("title")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			item, err := svc.AddChecklistItem(ctx, taskID, title)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("add_checklist_item", common.NewChecklistItemView(item))
		},
	)
}

// registerWorkloadTool registers `nexus.workload`.
func registerWorkloadTool(srv *mcpserver.MCPServer, svc *app.Service) {
	srv.AddTool(
		mcp.NewTool(
			"nexus.workload",
			mcp.WithDescription("Per-member task counts for one workspace: total, todo, in progress, done, overdue."),
			mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			workspaceID, err := req.RequireString("workspace_id")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			rows, err := svc.Workload(ctx, workspaceID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("workload", map[string]any{"workload": common.NewWorkloadViews(rows)})
		},
	)
}

func parseDue(raw string) (time.Time, bool) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), true
	}
	if ts, err := time.Parse(time.DateOnly, raw); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

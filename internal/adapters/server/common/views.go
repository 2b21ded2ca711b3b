package common

import (
	"time"

	"github.com/hylla/nexus/internal/app"
	"github.com/hylla/nexus/internal/domain"
	"github.com/shopspring/decimal"
)

// UserView is the wire shape of a user.
type UserView struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	JobTitle    string    `json:"jobTitle,omitempty"`
	Department  string    `json:"department,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UserRefView is the compact wire shape of a referenced user.
type UserRefView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// WorkspaceView is the wire shape of a workspace.
type WorkspaceView struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	Description      string    `json:"description,omitempty"`
	TeamsChannelID   string    `json:"teamsChannelId,omitempty"`
	SharePointSiteID string    `json:"sharePointSiteId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ProjectView is the wire shape of a project.
type ProjectView struct {
	ID          string           `json:"id"`
	WorkspaceID string           `json:"workspaceId"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Status      string           `json:"status"`
	StartDate   *time.Time       `json:"startDate,omitempty"`
	EndDate     *time.Time       `json:"endDate,omitempty"`
	Budget      *decimal.Decimal `json:"budget,omitempty"`
	LastSummary string           `json:"lastSummary,omitempty"`
	RiskScore   *int             `json:"riskScore,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// TaskView is the wire shape of a task.
type TaskView struct {
	ID              string     `json:"id"`
	ProjectID       string     `json:"projectId"`
	ParentID        string     `json:"parentId,omitempty"`
	CreatorID       string     `json:"creatorId"`
	AssigneeID      string     `json:"assigneeId,omitempty"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Status          string     `json:"status"`
	Priority        string     `json:"priority"`
	Type            string     `json:"type"`
	DueDate         *time.Time `json:"dueDate,omitempty"`
	EstimatedHours  *float64   `json:"estimatedHours,omitempty"`
	ActualHours     *float64   `json:"actualHours,omitempty"`
	SortOrder       int        `json:"sortOrder"`
	IsMilestone     bool       `json:"isMilestone"`
	CalendarEventID string     `json:"calendarEventId,omitempty"`
	TodoItemID      string     `json:"todoItemId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// TaskNodeView is one task with its nested subtasks.
type TaskNodeView struct {
	TaskView
	Assignee *UserRefView   `json:"assignee,omitempty"`
	Subtasks []TaskNodeView `json:"subtasks"`
}

// TaskDetailView is a task with its people and owned collections.
type TaskDetailView struct {
	TaskView
	Creator     *UserRefView        `json:"creator,omitempty"`
	Assignee    *UserRefView        `json:"assignee,omitempty"`
	Subtasks    []TaskView          `json:"subtasks"`
	Checklist   []ChecklistItemView `json:"checklist"`
	Comments    []CommentView       `json:"comments"`
	Attachments []AttachmentView    `json:"attachments"`
}

// ChecklistItemView is the wire shape of a checklist item.
type ChecklistItemView struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"taskId"`
	Title       string    `json:"title"`
	IsCompleted bool      `json:"isCompleted"`
	SortOrder   int       `json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CommentView is the wire shape of a comment.
type CommentView struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"taskId"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AttachmentView is the wire shape of attachment metadata. The locator stays server side.
type AttachmentView struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"taskId"`
	UploaderID  string    `json:"uploaderId"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MemberView is the wire shape of a workspace member.
type MemberView struct {
	WorkspaceID string    `json:"workspaceId"`
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	JobTitle    string    `json:"jobTitle,omitempty"`
	Department  string    `json:"department,omitempty"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// WorkloadView is the wire shape of one member's task counts.
type WorkloadView struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Role        string `json:"role"`
	TotalTasks  int    `json:"totalTasks"`
	Todo        int    `json:"todoTasks"`
	InProgress  int    `json:"inProgressTasks"`
	Done        int    `json:"doneTasks"`
	Overdue     int    `json:"overdueTasks"`
}

// ActivityView is the wire shape of one change-ledger row.
type ActivityView struct {
	ID         int64             `json:"id"`
	TaskID     string            `json:"taskId"`
	Operation  string            `json:"operation"`
	ActorID    string            `json:"actorId"`
	Metadata   map[string]string `json:"metadata"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// NewUserView converts a user.
func NewUserView(u domain.User) UserView {
	return UserView{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		JobTitle:    u.JobTitle,
		Department:  u.Department,
		CreatedAt:   u.CreatedAt,
	}
}

func newUserRefView(ref *domain.UserRef) *UserRefView {
	if ref == nil {
		return nil
	}
	return &UserRefView{ID: ref.ID, Email: ref.Email, DisplayName: ref.DisplayName, AvatarURL: ref.AvatarURL}
}

// NewWorkspaceView converts a workspace.
func NewWorkspaceView(ws domain.Workspace) WorkspaceView {
	return WorkspaceView{
		ID:               ws.ID,
		Name:             ws.Name,
		Slug:             ws.Slug,
		Description:      ws.Description,
		TeamsChannelID:   ws.TeamsChannelID,
		SharePointSiteID: ws.SharePointSiteID,
		CreatedAt:        ws.CreatedAt,
		UpdatedAt:        ws.UpdatedAt,
	}
}

// NewProjectView converts a project.
func NewProjectView(p domain.Project) ProjectView {
	return ProjectView{
		ID:          p.ID,
		WorkspaceID: p.WorkspaceID,
		Name:        p.Name,
		Description: p.Description,
		Status:      string(p.Status),
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Budget:      p.Budget,
		LastSummary: p.LastSummary,
		RiskScore:   p.RiskScore,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// NewTaskView converts a task.
func NewTaskView(t domain.Task) TaskView {
	return TaskView{
		ID:              t.ID,
		ProjectID:       t.ProjectID,
		ParentID:        t.ParentID,
		CreatorID:       t.CreatorID,
		AssigneeID:      t.AssigneeID,
		Title:           t.Title,
		Description:     t.Description,
		Status:          string(t.Status),
		Priority:        string(t.Priority),
		Type:            string(t.Type),
		DueDate:         t.DueDate,
		EstimatedHours:  t.EstimatedHours,
		ActualHours:     t.ActualHours,
		SortOrder:       t.SortOrder,
		IsMilestone:     t.IsMilestone,
		CalendarEventID: t.CalendarEventID,
		TodoItemID:      t.TodoItemID,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

// NewTaskViews converts a flat task list.
func NewTaskViews(tasks []domain.Task) []TaskView {
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, NewTaskView(t))
	}
	return out
}

// NewTaskTreeView converts a task forest, keeping nesting and order.
func NewTaskTreeView(nodes []domain.TaskNode) []TaskNodeView {
	out := make([]TaskNodeView, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, TaskNodeView{
			TaskView: NewTaskView(node.Task),
			Assignee: newUserRefView(node.Assignee),
			Subtasks: NewTaskTreeView(node.Subtasks),
		})
	}
	return out
}

// NewTaskDetailView converts a task detail.
func NewTaskDetailView(d app.TaskDetail) TaskDetailView {
	view := TaskDetailView{
		TaskView:    NewTaskView(d.Task),
		Creator:     newUserRefView(d.Creator),
		Assignee:    newUserRefView(d.Assignee),
		Subtasks:    NewTaskViews(d.Subtasks),
		Checklist:   NewChecklistViews(d.Checklist),
		Comments:    make([]CommentView, 0, len(d.Comments)),
		Attachments: make([]AttachmentView, 0, len(d.Attachments)),
	}
	for _, c := range d.Comments {
		view.Comments = append(view.Comments, NewCommentView(c))
	}
	for _, a := range d.Attachments {
		view.Attachments = append(view.Attachments, NewAttachmentView(a))
	}
	return view
}

// NewChecklistItemView converts a checklist item.
func NewChecklistItemView(item domain.ChecklistItem) ChecklistItemView {
	return ChecklistItemView{
		ID:          item.ID,
		TaskID:      item.TaskID,
		Title:       item.Title,
		IsCompleted: item.IsCompleted,
		SortOrder:   item.SortOrder,
		CreatedAt:   item.CreatedAt,
	}
}

// NewChecklistViews converts a checklist.
func NewChecklistViews(items []domain.ChecklistItem) []ChecklistItemView {
	out := make([]ChecklistItemView, 0, len(items))
	for _, item := range items {
		out = append(out, NewChecklistItemView(item))
	}
	return out
}

// NewCommentView converts a comment.
func NewCommentView(c domain.Comment) CommentView {
	return CommentView{
		ID:         c.ID,
		TaskID:     c.TaskID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		Content:    c.Content,
		CreatedAt:  c.CreatedAt,
	}
}

// NewAttachmentView converts attachment metadata.
func NewAttachmentView(a domain.Attachment) AttachmentView {
	return AttachmentView{
		ID:          a.ID,
		TaskID:      a.TaskID,
		UploaderID:  a.UploaderID,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		Size:        a.Size,
		CreatedAt:   a.CreatedAt,
	}
}

// NewMemberView converts a member profile.
func NewMemberView(m domain.MemberProfile) MemberView {
	return MemberView{
		WorkspaceID: m.WorkspaceID,
		UserID:      m.UserID,
		Email:       m.Email,
		DisplayName: m.DisplayName,
		AvatarURL:   m.AvatarURL,
		JobTitle:    m.JobTitle,
		Department:  m.Department,
		Role:        string(m.Role),
		JoinedAt:    m.JoinedAt,
	}
}

// NewWorkloadViews converts workload rows.
func NewWorkloadViews(rows []domain.Workload) []WorkloadView {
	out := make([]WorkloadView, 0, len(rows))
	for _, w := range rows {
		out = append(out, WorkloadView{
			UserID:      w.UserID,
			DisplayName: w.DisplayName,
			Email:       w.Email,
			AvatarURL:   w.AvatarURL,
			Role:        string(w.Role),
			TotalTasks:  w.TotalTasks,
			Todo:        w.Todo,
			InProgress:  w.InProgress,
			Done:        w.Done,
			Overdue:     w.Overdue,
		})
	}
	return out
}

// NewActivityViews converts change-ledger rows.
func NewActivityViews(events []domain.ChangeEvent) []ActivityView {
	out := make([]ActivityView, 0, len(events))
	for _, e := range events {
		out = append(out, ActivityView{
			ID:         e.ID,
			TaskID:     e.TaskID,
			Operation:  string(e.Operation),
			ActorID:    e.ActorID,
			Metadata:   e.Metadata,
			OccurredAt: e.OccurredAt,
		})
	}
	return out
}

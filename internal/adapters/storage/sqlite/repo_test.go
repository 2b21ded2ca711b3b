package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hylla/nexus/internal/app"
	"github.com/hylla/nexus/internal/domain"
	"github.com/shopspring/decimal"
)

// fixture holds one seeded workspace, owner, and project.
type fixture struct {
	repo      *Repository
	now       time.Time
	owner     domain.User
	workspace domain.Workspace
	project   domain.Project
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	owner, err := domain.NewUser(domain.UserInput{ID: "u-owner", Subject: "sub-owner", Email: "owner@example.com", DisplayName: "Olive Owner"}, now)
	if err != nil {
		t.Fatalf("NewUser() error = %v", err)
	}
	if err := repo.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	ws, err := domain.NewWorkspace(domain.WorkspaceInput{ID: "ws1", Name: "Default"}, now)
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}
	member, err := domain.NewMember(ws.ID, owner.ID, domain.RoleOwner, now)
	if err != nil {
		t.Fatalf("NewMember() error = %v", err)
	}
	if err := repo.CreateWorkspace(ctx, ws, member); err != nil {
		t.Fatalf("CreateWorkspace() error = %v", err)
	}
	project, err := domain.NewProject(domain.ProjectInput{ID: "p1", WorkspaceID: ws.ID, Name: "Alpha"}, now)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}
	if err := repo.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	return fixture{repo: repo, now: now, owner: owner, workspace: ws, project: project}
}

func (f fixture) task(t *testing.T, id, parentID, title string, sortOrder int) domain.Task {
	t.Helper()
	task, err := domain.NewTask(domain.TaskInput{
		ID:        id,
		ProjectID: f.project.ID,
		ParentID:  parentID,
		CreatorID: f.owner.ID,
		Title:     title,
		SortOrder: sortOrder,
	}, f.now)
	if err != nil {
		t.Fatalf("NewTask(%s) error = %v", id, err)
	}
	if err := f.repo.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask(%s) error = %v", id, err)
	}
	return task
}

func TestRepository_OpenFileMigratesTwice(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "nexus.db")
	repo, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	repo, err = Open(dbPath)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if _, err := Open(" "); err == nil {
		t.Fatal("Open(blank) error = nil, want error")
	}
}

func TestRepository_UserUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dupEmail, _ := domain.NewUser(domain.UserInput{ID: "u2", Subject: "sub-2", Email: "OWNER@example.com"}, f.now)
	if err := f.repo.CreateUser(ctx, dupEmail); !errors.Is(err, app.ErrConflict) {
		t.Fatalf("CreateUser(duplicate email) error = %v, want ErrConflict", err)
	}
	dupSubject, _ := domain.NewUser(domain.UserInput{ID: "u3", Subject: "sub-owner", Email: "other@example.com"}, f.now)
	if err := f.repo.CreateUser(ctx, dupSubject); !errors.Is(err, app.ErrConflict) {
		t.Fatalf("CreateUser(duplicate subject) error = %v, want ErrConflict", err)
	}

	// invited users have no subject yet; several may coexist.
	for _, in := range []domain.UserInput{
		{ID: "inv1", Email: "a@example.com"},
		{ID: "inv2", Email: "b@example.com"},
	} {
		u, err := domain.NewUser(in, f.now)
		if err != nil {
			t.Fatalf("NewUser() error = %v", err)
		}
		if err := f.repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser(%s) error = %v", in.ID, err)
		}
	}
	got, err := f.repo.GetUserByEmail(ctx, "A@Example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if got.ID != "inv1" || got.Subject != "" {
		t.Fatalf("unexpected invited user %#v", got)
	}
	if err := got.Link("sub-a", f.now.Add(time.Minute)); err != nil {
		t.Fatalf("Link() error = %v", err)
	}
	if err := f.repo.UpdateUser(ctx, got); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	linked, err := f.repo.GetUserBySubject(ctx, "sub-a")
	if err != nil || linked.ID != "inv1" {
		t.Fatalf("GetUserBySubject() = %#v, %v", linked, err)
	}
	if _, err := f.repo.GetUser(ctx, "missing"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("GetUser(missing) error = %v, want ErrNotFound", err)
	}

	users, err := f.repo.ListUsersByIDs(ctx, []string{"inv1", "missing", f.owner.ID})
	if err != nil {
		t.Fatalf("ListUsersByIDs() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	all, err := f.repo.ListUsers(ctx, 2)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListUsers(limit 2) len = %d", len(all))
	}
}

func TestRepository_Membership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	guest, _ := domain.NewUser(domain.UserInput{ID: "u-guest", Email: "guest@example.com", DisplayName: "Gus"}, f.now)
	if err := f.repo.CreateUser(ctx, guest); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	m, _ := domain.NewMember(f.workspace.ID, guest.ID, domain.RoleViewer, f.now)
	if err := f.repo.CreateMember(ctx, m); err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}
	if err := f.repo.CreateMember(ctx, m); !errors.Is(err, app.ErrConflict) {
		t.Fatalf("CreateMember(duplicate) error = %v, want ErrConflict", err)
	}

	members, err := f.repo.ListMembers(ctx, f.workspace.ID)
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if len(members) != 2 || members[0].Role != domain.RoleOwner || members[1].DisplayName != "Gus" {
		t.Fatalf("unexpected members %#v", members)
	}

	m.Role = domain.RoleAdmin
	if err := f.repo.UpdateMember(ctx, m); err != nil {
		t.Fatalf("UpdateMember() error = %v", err)
	}
	got, err := f.repo.GetMember(ctx, f.workspace.ID, guest.ID)
	if err != nil || got.Role != domain.RoleAdmin {
		t.Fatalf("GetMember() = %#v, %v", got, err)
	}
	workspaces, err := f.repo.ListWorkspacesForUser(ctx, guest.ID)
	if err != nil || len(workspaces) != 1 {
		t.Fatalf("ListWorkspacesForUser() = %#v, %v", workspaces, err)
	}

	if err := f.repo.DeleteMember(ctx, f.workspace.ID, guest.ID); err != nil {
		t.Fatalf("DeleteMember() error = %v", err)
	}
	if err := f.repo.DeleteMember(ctx, f.workspace.ID, guest.ID); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("DeleteMember(again) error = %v, want ErrNotFound", err)
	}
	if _, err := f.repo.GetMember(ctx, f.workspace.ID, guest.ID); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("GetMember(removed) error = %v, want ErrNotFound", err)
	}
}

func TestRepository_ProjectRoundTripKeepsDecimalBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.project
	budget := decimal.RequireFromString("125000.10")
	risk := 42
	p.Budget = &budget
	p.RiskScore = &risk
	p.Status = domain.ProjectStatusActive
	p.UpdatedAt = f.now.Add(time.Hour)
	if err := f.repo.UpdateProject(ctx, p); err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}
	got, err := f.repo.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if got.Budget == nil || got.Budget.String() != "125000.1" {
		t.Fatalf("unexpected budget %v", got.Budget)
	}
	if got.RiskScore == nil || *got.RiskScore != 42 || got.Status != domain.ProjectStatusActive {
		t.Fatalf("unexpected project %#v", got)
	}

	orphan, _ := domain.NewProject(domain.ProjectInput{ID: "p-orphan", WorkspaceID: "nope", Name: "Orphan"}, f.now)
	if err := f.repo.CreateProject(ctx, orphan); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("CreateProject(missing workspace) error = %v, want ErrNotFound", err)
	}
	p.ID = "missing"
	if err := f.repo.UpdateProject(ctx, p); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("UpdateProject(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRepository_TaskLifecycleAndLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.task(t, "t1", "", "Design schema", 0)
	f.task(t, "t2", "", "Write docs", 1)
	child := f.task(t, "t1a", root.ID, "Draft ERD", 0)

	tasks, err := f.repo.ListTasks(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}

	due := f.now.Add(48 * time.Hour)
	hours := 2.5
	if err := child.ApplyPatch(domain.TaskPatch{DueDate: &due, EstimatedHours: &hours}, f.now.Add(time.Minute)); err != nil {
		t.Fatalf("ApplyPatch() error = %v", err)
	}
	child.UpdatedByID = f.owner.ID
	if err := f.repo.UpdateTask(ctx, child); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if err := child.SetStatus(domain.StatusDone, f.now.Add(2*time.Minute)); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if err := f.repo.UpdateTask(ctx, child); err != nil {
		t.Fatalf("UpdateTask(status) error = %v", err)
	}

	got, err := f.repo.GetTask(ctx, child.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.ParentID != root.ID || got.Status != domain.StatusDone || got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Fatalf("unexpected stored task %#v", got)
	}
	if got.EstimatedHours == nil || *got.EstimatedHours != 2.5 || got.AssigneeID != "" {
		t.Fatalf("unexpected optional fields %#v", got)
	}

	events, err := f.repo.ListProjectChangeEvents(ctx, f.project.ID, 10)
	if err != nil {
		t.Fatalf("ListProjectChangeEvents() error = %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	if events[0].Operation != domain.ChangeOperationStatus || events[0].Metadata["to_status"] != "done" {
		t.Fatalf("unexpected latest event %#v", events[0])
	}
	if events[1].Operation != domain.ChangeOperationUpdate || events[1].Metadata["changed_fields"] != "due_date,estimated_hours" {
		t.Fatalf("unexpected update event %#v", events[1])
	}
	if events[0].ActorID != f.owner.ID {
		t.Fatalf("unexpected actor %q", events[0].ActorID)
	}

	missing := child
	missing.ID = "missing"
	if err := f.repo.UpdateTask(ctx, missing); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("UpdateTask(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRepository_DeleteTaskRemovesSubtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.task(t, "t1", "", "Root", 0)
	mid := f.task(t, "t1a", root.ID, "Mid", 0)
	leaf := f.task(t, "t1a1", mid.ID, "Leaf", 0)
	keep := f.task(t, "t2", "", "Keep", 1)

	item, _ := domain.NewChecklistItem("c1", leaf.ID, "check", f.now)
	if _, err := f.repo.CreateChecklistItem(ctx, item); err != nil {
		t.Fatalf("CreateChecklistItem() error = %v", err)
	}
	comment, _ := domain.NewComment("m1", mid.ID, f.owner.ID, "hello", f.now)
	if err := f.repo.CreateComment(ctx, comment); err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}

	if err := f.repo.DeleteTask(ctx, root.ID, f.owner.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	for _, id := range []string{root.ID, mid.ID, leaf.ID} {
		if _, err := f.repo.GetTask(ctx, id); !errors.Is(err, app.ErrNotFound) {
			t.Fatalf("GetTask(%s) error = %v, want ErrNotFound", id, err)
		}
	}
	if _, err := f.repo.GetTask(ctx, keep.ID); err != nil {
		t.Fatalf("GetTask(keep) error = %v", err)
	}
	items, err := f.repo.ListChecklistItems(ctx, leaf.ID)
	if err != nil || len(items) != 0 {
		t.Fatalf("ListChecklistItems(deleted) = %#v, %v", items, err)
	}
	comments, err := f.repo.ListComments(ctx, mid.ID)
	if err != nil || len(comments) != 0 {
		t.Fatalf("ListComments(deleted) = %#v, %v", comments, err)
	}

	events, err := f.repo.ListProjectChangeEvents(ctx, f.project.ID, 50)
	if err != nil {
		t.Fatalf("ListProjectChangeEvents() error = %v", err)
	}
	deletes := 0
	for _, event := range events {
		if event.Operation == domain.ChangeOperationDelete {
			deletes++
		}
	}
	if deletes != 3 {
		t.Fatalf("expected 3 delete events, got %d", deletes)
	}
	if err := f.repo.DeleteTask(ctx, root.ID, f.owner.ID); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("DeleteTask(again) error = %v, want ErrNotFound", err)
	}
}

func TestRepository_ChecklistSortOrderNeverReused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task(t, "t1", "", "Task", 0)

	var orders []int
	for _, id := range []string{"a", "b", "c"} {
		item, _ := domain.NewChecklistItem(id, task.ID, "item "+id, f.now)
		stored, err := f.repo.CreateChecklistItem(ctx, item)
		if err != nil {
			t.Fatalf("CreateChecklistItem(%s) error = %v", id, err)
		}
		orders = append(orders, stored.SortOrder)
	}
	if orders[0] != 1 || orders[1] != 2 || orders[2] != 3 {
		t.Fatalf("unexpected sort orders %v", orders)
	}

	if err := f.repo.DeleteChecklistItem(ctx, task.ID, "c"); err != nil {
		t.Fatalf("DeleteChecklistItem() error = %v", err)
	}
	item, _ := domain.NewChecklistItem("d", task.ID, "item d", f.now)
	stored, err := f.repo.CreateChecklistItem(ctx, item)
	if err != nil {
		t.Fatalf("CreateChecklistItem(d) error = %v", err)
	}
	if stored.SortOrder != 4 {
		t.Fatalf("sort order after delete = %d, want 4", stored.SortOrder)
	}

	done := true
	got, err := f.repo.GetChecklistItem(ctx, task.ID, "a")
	if err != nil {
		t.Fatalf("GetChecklistItem() error = %v", err)
	}
	if err := got.ApplyPatch(domain.ChecklistPatch{IsCompleted: &done}, f.now); err != nil {
		t.Fatalf("ApplyPatch() error = %v", err)
	}
	if err := f.repo.UpdateChecklistItem(ctx, got); err != nil {
		t.Fatalf("UpdateChecklistItem() error = %v", err)
	}
	items, err := f.repo.ListChecklistItems(ctx, task.ID)
	if err != nil {
		t.Fatalf("ListChecklistItems() error = %v", err)
	}
	if len(items) != 3 || !items[0].IsCompleted || items[2].ID != "d" {
		t.Fatalf("unexpected checklist %#v", items)
	}

	if _, err := f.repo.GetChecklistItem(ctx, "other-task", "a"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("GetChecklistItem(wrong task) error = %v, want ErrNotFound", err)
	}
	orphan, _ := domain.NewChecklistItem("x", "missing", "x", f.now)
	if _, err := f.repo.CreateChecklistItem(ctx, orphan); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("CreateChecklistItem(missing task) error = %v, want ErrNotFound", err)
	}
}

func TestRepository_AttachmentsAndWorkspaceCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task(t, "t1", "", "Task", 0)

	a, err := domain.NewAttachment(domain.AttachmentInput{
		ID:         "f1",
		TaskID:     task.ID,
		UploaderID: f.owner.ID,
		FileName:   "plan.pdf",
		Locator:    "/uploads/t1/f1.pdf",
		Size:       12,
	}, f.now)
	if err != nil {
		t.Fatalf("NewAttachment() error = %v", err)
	}
	if err := f.repo.CreateAttachment(ctx, a); err != nil {
		t.Fatalf("CreateAttachment() error = %v", err)
	}
	list, err := f.repo.ListAttachments(ctx, task.ID)
	if err != nil || len(list) != 1 || list[0].ContentType != domain.DefaultContentType {
		t.Fatalf("ListAttachments() = %#v, %v", list, err)
	}

	if err := f.repo.DeleteWorkspace(ctx, f.workspace.ID); err != nil {
		t.Fatalf("DeleteWorkspace() error = %v", err)
	}
	if _, err := f.repo.GetProject(ctx, f.project.ID); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("GetProject(after workspace delete) error = %v, want ErrNotFound", err)
	}
	if _, err := f.repo.GetAttachment(ctx, a.ID); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("GetAttachment(after cascade) error = %v, want ErrNotFound", err)
	}
	if _, err := f.repo.GetUser(ctx, f.owner.ID); err != nil {
		t.Fatalf("users must survive workspace delete, got %v", err)
	}
}

func TestRepository_UpdateTaskRejectsCycleFromStaleRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.task(t, "a", "", "A", 0)
	b := f.task(t, "b", "", "B", 1)

	// both writers read a and b as roots before either re-parent lands
	staleA, staleB := a, b
	staleA.ParentID = b.ID
	staleA.UpdatedAt = f.now.Add(time.Minute)
	if err := f.repo.UpdateTask(ctx, staleA); err != nil {
		t.Fatalf("UpdateTask(a under b) error = %v", err)
	}
	staleB.ParentID = a.ID
	staleB.UpdatedAt = f.now.Add(2 * time.Minute)
	if err := f.repo.UpdateTask(ctx, staleB); !errors.Is(err, domain.ErrParentCycle) {
		t.Fatalf("UpdateTask(b under a) error = %v, want ErrParentCycle", err)
	}
	got, err := f.repo.GetTask(ctx, b.ID)
	if err != nil || got.ParentID != "" {
		t.Fatalf("GetTask(b) = %#v, %v; want b to stay a root", got, err)
	}

	deep := f.task(t, "c", a.ID, "C", 0)
	staleB.ParentID = deep.ID
	if err := f.repo.UpdateTask(ctx, staleB); !errors.Is(err, domain.ErrParentCycle) {
		t.Fatalf("UpdateTask(b under grandchild) error = %v, want ErrParentCycle", err)
	}
	staleB.ParentID = "missing"
	if err := f.repo.UpdateTask(ctx, staleB); !errors.Is(err, domain.ErrInvalidParentID) {
		t.Fatalf("UpdateTask(b under missing) error = %v, want ErrInvalidParentID", err)
	}
}

func TestRepository_MemberGuardsKeepAnOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second, _ := domain.NewUser(domain.UserInput{ID: "u-second", Email: "second@example.com", DisplayName: "Sam"}, f.now)
	if err := f.repo.CreateUser(ctx, second); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	m, _ := domain.NewMember(f.workspace.ID, second.ID, domain.RoleOwner, f.now)
	if err := f.repo.CreateMember(ctx, m); err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}

	first, err := f.repo.GetMember(ctx, f.workspace.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("GetMember(owner) error = %v", err)
	}
	m.Role = domain.RoleViewer
	if err := f.repo.UpdateMember(ctx, m); err != nil {
		t.Fatalf("UpdateMember(demote second) error = %v", err)
	}
	first.Role = domain.RoleViewer
	if err := f.repo.UpdateMember(ctx, first); !errors.Is(err, app.ErrLastOwner) {
		t.Fatalf("UpdateMember(demote last) error = %v, want ErrLastOwner", err)
	}
	if err := f.repo.DeleteMember(ctx, f.workspace.ID, f.owner.ID); !errors.Is(err, app.ErrOwnerRemoval) {
		t.Fatalf("DeleteMember(owner) error = %v, want ErrOwnerRemoval", err)
	}
	got, err := f.repo.GetMember(ctx, f.workspace.ID, f.owner.ID)
	if err != nil || got.Role != domain.RoleOwner {
		t.Fatalf("GetMember(owner) = %#v, %v", got, err)
	}
}

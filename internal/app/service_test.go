package app_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hylla/nexus/internal/adapters/storage/sqlite"
	"github.com/hylla/nexus/internal/app"
	"github.com/hylla/nexus/internal/domain"
)

// harness wires a service over an in-memory database with a controllable clock.
type harness struct {
	svc  *app.Service
	repo *sqlite.Repository
	mu   sync.Mutex
	now  time.Time
	seq  int
}

func newHarness(t *testing.T, cfg app.ServiceConfig, opts ...app.Option) *harness {
	t.Helper()
	return newHarnessOver(t, nil, cfg, opts...)
}

// newHarnessOver lets a test wrap the repository the service sees.
func newHarnessOver(t *testing.T, wrap func(*sqlite.Repository) app.Repository, cfg app.ServiceConfig, opts ...app.Option) *harness {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	h := &harness{repo: repo, now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	idGen := func() string {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.seq++
		return fmt.Sprintf("id-%03d", h.seq)
	}
	clock := func() time.Time {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.now = h.now.Add(time.Second)
		return h.now
	}
	var store app.Repository = repo
	if wrap != nil {
		store = wrap(repo)
	}
	h.svc = app.NewService(store, idGen, clock, cfg, opts...)
	return h
}

// signIn resolves an identity and returns a context carrying it as caller.
func (h *harness) signIn(t *testing.T, subject, email, name string) (context.Context, domain.User) {
	t.Helper()
	user, err := h.svc.ResolveIdentity(context.Background(), domain.Identity{Subject: subject, Email: email, DisplayName: name})
	if err != nil {
		t.Fatalf("ResolveIdentity(%s) error = %v", subject, err)
	}
	return app.WithCaller(context.Background(), app.Caller{UserID: user.ID, Subject: user.Subject, DisplayName: user.DisplayName}), user
}

// workspaceWithProject signs in an owner and creates the default workspace and one project.
func (h *harness) workspaceWithProject(t *testing.T) (context.Context, domain.User, domain.Workspace, domain.Project) {
	t.Helper()
	ctx, owner := h.signIn(t, "sub-owner", "owner@example.com", "Olive Owner")
	ws, err := h.svc.EnsureDefaultWorkspace(ctx)
	if err != nil {
		t.Fatalf("EnsureDefaultWorkspace() error = %v", err)
	}
	project, err := h.svc.CreateProject(ctx, app.CreateProjectInput{WorkspaceID: ws.ID, Name: "Alpha"})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	return ctx, owner, ws, project
}

func ptr[T any](v T) *T {
	return &v
}

func TestScenarioTaskTreeAndWorkload(t *testing.T) {
	h := newHarness(t, app.ServiceConfig{})
	ctx, owner, ws, project := h.workspaceWithProject(t)

	again, err := h.svc.EnsureDefaultWorkspace(ctx)
	if err != nil || again.ID != ws.ID {
		t.Fatalf("EnsureDefaultWorkspace(again) = %#v, %v", again, err)
	}

	root, err := h.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: project.ID, Title: "Design schema", Priority: domain.PriorityHigh})
	if err != nil {
		t.Fatalf("CreateTask(root) error = %v", err)
	}
	if root.Status != domain.StatusTodo || root.Type != domain.TaskTypeTask || root.CreatorID != owner.ID {
		t.Fatalf("unexpected root defaults %#v", root)
	}
	child, err := h.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: project.ID, ParentID: root.ID, Title: "Draft ERD"})
	if err != nil {
		t.Fatalf("CreateTask(child) error = %v", err)
	}
	second, err := h.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: project.ID, Title: "Write docs"})
	if err != nil {
		t.Fatalf("CreateTask(second) error = %v", err)
	}
	if second.SortOrder != 1 || child.SortOrder != 0 {
		t.Fatalf("unexpected sort orders root=%d second=%d child=%d", root.SortOrder, second.SortOrder, child.SortOrder)
	}

	if _, err := h.svc.UpdateTaskStatus(ctx, child.ID, domain.StatusDone); err != nil {
		t.Fatalf("UpdateTaskStatus() error = %v", err)
	}
	// every transition is allowed, including back out of done
	if _, err := h.svc.UpdateTaskStatus(ctx, second.ID, domain.StatusDone); err != nil {
		t.Fatalf("UpdateTaskStatus(second done) error = %v", err)
	}
	if _, err := h.svc.UpdateTaskStatus(ctx, second.ID, domain.StatusTodo); err != nil {
		t.Fatalf("UpdateTaskStatus(second todo) error = %v", err)
	}

	tree, err := h.svc.ListTaskTree(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListTaskTree() error = %v", err)
	}
	if len(tree) != 2 || tree[0].ID != root.ID || tree[1].ID != second.ID {
		t.Fatalf("unexpected roots %#v", tree)
	}
	if len(tree[0].Subtasks) != 1 || tree[0].Subtasks[0].Title != "Draft ERD" || tree[0].Subtasks[0].Status != domain.StatusDone {
		t.Fatalf("unexpected subtasks %#v", tree[0].Subtasks)
	}
	flat, err := h.svc.ListTasks(ctx, project.ID)
	if err != nil || len(flat) != 3 {
		t.Fatalf("ListTasks() = %d tasks, %v", len(flat), err)
	}

	past := h.now.Add(-48 * time.Hour)
	for _, id := range []string{root.ID, child.ID} {
		if _, err := h.svc.UpdateTask(ctx, id, domain.TaskPatch{AssigneeID: ptr(owner.ID), DueDate: &past}); err != nil {
			t.Fatalf("UpdateTask(assign %s) error = %v", id, err)
		}
	}
	loads, err := h.svc.Workload(ctx, ws.ID)
	if err != nil {
		t.Fatalf("Workload() error = %v", err)
	}
	if len(loads) != 1 {
		t.Fatalf("expected 1 workload row, got %d", len(loads))
	}
	got := loads[0]
	if got.UserID != owner.ID || got.TotalTasks != 2 || got.Todo != 1 || got.Done != 1 || got.Overdue != 1 {
		t.Fatalf("unexpected workload %#v", got)
	}

	detail, err := h.svc.GetTaskDetail(ctx, root.ID)
	if err != nil {
		t.Fatalf("GetTaskDetail() error = %v", err)
	}
	if detail.Assignee == nil || detail.Assignee.DisplayName != "Olive Owner" || len(detail.Subtasks) != 1 {
		t.Fatalf("unexpected detail %#v", detail)
	}

	activity, err := h.svc.ListProjectActivity(ctx, project.ID, 0)
	if err != nil {
		t.Fatalf("ListProjectActivity() error = %v", err)
	}
	if len(activity) == 0 || activity[0].ActorID != owner.ID {
		t.Fatalf("unexpected activity %#v", activity)
	}
}

func TestParentValidation(t *testing.T) {
	h := newHarness(t, app.ServiceConfig{})
	ctx, _, ws, project := h.workspaceWithProject(t)

	root, _ := h.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: project.ID, Title: "Root"})
	child, _ := h.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: project.ID, ParentID: root.ID, Title: "Child"})
	other, err := h.svc.CreateProject(ctx, app.CreateProjectInput{WorkspaceID: ws.ID, Name: "Beta"})
	if err != nil {
		t.Fatalf("CreateProject(Beta) error = %v", err)
	}
	foreign, _ := h.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: other.ID, Title: "Foreign"})

	cases := []struct {
		name   string
		taskID string
		parent string
		want   error
	}{
		{name: "self", taskID: root.ID, parent: root.ID, want: domain.ErrParentCycle},
		{name: "descendant", taskID: root.ID, parent: child.ID, want: domain.ErrParentCycle},
		{name: "other project", taskID: child.ID, parent: foreign.ID, want: domain.ErrParentOutsideProject},
		{name: "missing", taskID: child.ID, parent: "nope", want: domain.ErrInvalidParentID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.UpdateTask(ctx, tc.taskID, domain.TaskPatch{ParentID: ptr(tc.parent)})
			if !errors.Is(err, tc.want) {
				t.Fatalf("UpdateTask(parent=%s) error = %v, want %v", tc.parent, err, tc.want)
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation category, got %v", err)
			}
		})
	}

	if _, err := h.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: project.ID, ParentID: foreign.ID, Title: "x"}); !errors.Is(err, domain.ErrParentOutsideProject) {
		t.Fatalf("CreateTask(foreign parent) error = %v, want ErrParentOutsideProject", err)
	}
	detached, err := h.svc.UpdateTask(ctx, child.ID, domain.TaskPatch{ParentID: ptr("")})
	if err != nil {
		t.Fatalf("UpdateTask(detach) error = %v", err)
	}
	if !detached.IsRoot() {
		t.Fatalf("expected detached task to be a root, got parent %q", detached.ParentID)
	}
	if _, err := h.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: "missing", Title: "x"}); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("CreateTask(missing project) error = %v, want ErrNotFound", err)
	}
	if _, err := h.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: project.ID, Title: "x", AssigneeID: "ghost"}); !errors.Is(err, domain.ErrInvalidAssigneeID) {
		t.Fatalf("CreateTask(unknown assignee) error = %v, want ErrInvalidAssigneeID", err)
	}
}

func TestMembershipRules(t *testing.T) {
	h := newHarness(t, app.ServiceConfig{})
	ownerCtx, owner, ws, project := h.workspaceWithProject(t)

	viewer, err := h.svc.AddMember(ownerCtx, app.AddMemberInput{WorkspaceID: ws.ID, Email: "Vera@Example.com", Role: "Viewer"})
	if err != nil {
		t.Fatalf("AddMember(viewer) error = %v", err)
	}
	if viewer.Role != domain.RoleViewer || viewer.Email != "vera@example.com" || viewer.DisplayName != "vera" {
		t.Fatalf("unexpected viewer %#v", viewer)
	}
	if _, err := h.svc.AddMember(ownerCtx, app.AddMemberInput{WorkspaceID: ws.ID, Email: "vera@example.com"}); !errors.Is(err, app.ErrConflict) {
		t.Fatalf("AddMember(duplicate) error = %v, want ErrConflict", err)
	}
	admin, err := h.svc.AddMember(ownerCtx, app.AddMemberInput{WorkspaceID: ws.ID, Email: "ada@example.com", Role: "admin"})
	if err != nil {
		t.Fatalf("AddMember(admin) error = %v", err)
	}
	unknownRole, err := h.svc.AddMember(ownerCtx, app.AddMemberInput{WorkspaceID: ws.ID, Email: "max@example.com", Role: "superuser"})
	if err != nil || unknownRole.Role != domain.RoleMember {
		t.Fatalf("AddMember(unknown role) = %#v, %v", unknownRole, err)
	}

	// the invited viewer signs in for the first time and is linked, not duplicated
	viewerCtx, viewerUser := h.signIn(t, "sub-vera", "vera@example.com", "Vera V")
	if viewerUser.ID != viewer.UserID || viewerUser.Subject != "sub-vera" {
		t.Fatalf("expected invited user to be linked, got %#v", viewerUser)
	}
	adminCtx, _ := h.signIn(t, "sub-ada", "ada@example.com", "Ada")
	outsiderCtx, _ := h.signIn(t, "sub-out", "out@example.com", "Otto")

	if _, err := h.svc.CreateTask(viewerCtx, app.CreateTaskInput{ProjectID: project.ID, Title: "nope"}); !errors.Is(err, app.ErrForbidden) {
		t.Fatalf("viewer CreateTask error = %v, want ErrForbidden", err)
	}
	if _, err := h.svc.ListTasks(viewerCtx, project.ID); err != nil {
		t.Fatalf("viewer ListTasks error = %v", err)
	}
	if _, err := h.svc.ListProjects(outsiderCtx, ws.ID); !errors.Is(err, app.ErrForbidden) {
		t.Fatalf("outsider ListProjects error = %v, want ErrForbidden", err)
	}
	if _, err := h.svc.ListProjects(outsiderCtx, "missing"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("ListProjects(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := h.svc.ListProjects(context.Background(), ws.ID); !errors.Is(err, app.ErrUnauthenticated) {
		t.Fatalf("anonymous ListProjects error = %v, want ErrUnauthenticated", err)
	}

	if _, err := h.svc.AddMember(adminCtx, app.AddMemberInput{WorkspaceID: ws.ID, Email: "eve@example.com", Role: "owner"}); !errors.Is(err, app.ErrForbidden) {
		t.Fatalf("admin granting owner error = %v, want ErrForbidden", err)
	}
	if _, err := h.svc.UpdateMemberRole(adminCtx, ws.ID, viewer.UserID, "member"); err != nil {
		t.Fatalf("admin UpdateMemberRole error = %v", err)
	}
	if _, err := h.svc.UpdateMemberRole(ownerCtx, ws.ID, viewer.UserID, "boss"); !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("UpdateMemberRole(bad role) error = %v, want ErrInvalidRole", err)
	}
	if _, err := h.svc.UpdateMemberRole(ownerCtx, ws.ID, owner.ID, "admin"); !errors.Is(err, app.ErrLastOwner) {
		t.Fatalf("demoting last owner error = %v, want ErrLastOwner", err)
	}

	for _, ctx := range []context.Context{ownerCtx, adminCtx} {
		if err := h.svc.RemoveMember(ctx, ws.ID, owner.ID); !errors.Is(err, app.ErrOwnerRemoval) {
			t.Fatalf("RemoveMember(owner) error = %v, want ErrOwnerRemoval", err)
		}
	}
	if err := h.svc.RemoveMember(viewerCtx, ws.ID, admin.UserID); !errors.Is(err, app.ErrForbidden) {
		t.Fatalf("member removing admin error = %v, want ErrForbidden", err)
	}
	if err := h.svc.RemoveMember(adminCtx, ws.ID, viewer.UserID); err != nil {
		t.Fatalf("RemoveMember(viewer) error = %v", err)
	}
	if _, err := h.svc.ListTasks(viewerCtx, project.ID); !errors.Is(err, app.ErrForbidden) {
		t.Fatalf("removed member ListTasks error = %v, want ErrForbidden", err)
	}

	members, err := h.svc.ListMembers(ownerCtx, ws.ID)
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}
	if err := h.svc.DeleteWorkspace(adminCtx, ws.ID); !errors.Is(err, app.ErrForbidden) {
		t.Fatalf("admin DeleteWorkspace error = %v, want ErrForbidden", err)
	}
}

func TestDeleteTaskModes(t *testing.T) {
	reject := newHarness(t, app.ServiceConfig{TaskDeleteMode: app.DeleteModeReject})
	ctx, _, _, project := reject.workspaceWithProject(t)
	root, _ := reject.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: project.ID, Title: "Root"})
	leaf, _ := reject.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: project.ID, ParentID: root.ID, Title: "Leaf"})
	if err := reject.svc.DeleteTask(ctx, root.ID); !errors.Is(err, domain.ErrHasSubtasks) {
		t.Fatalf("DeleteTask(reject) error = %v, want ErrHasSubtasks", err)
	}
	if err := reject.svc.DeleteTask(ctx, leaf.ID); err != nil {
		t.Fatalf("DeleteTask(leaf) error = %v", err)
	}
	if err := reject.svc.DeleteTask(ctx, root.ID); err != nil {
		t.Fatalf("DeleteTask(root after leaf) error = %v", err)
	}

	cascade := newHarness(t, app.ServiceConfig{})
	ctx, _, _, project = cascade.workspaceWithProject(t)
	root, _ = cascade.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: project.ID, Title: "Root"})
	mid, _ := cascade.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: project.ID, ParentID: root.ID, Title: "Mid"})
	leaf, _ = cascade.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: project.ID, ParentID: mid.ID, Title: "Leaf"})
	if _, err := cascade.svc.AddChecklistItem(ctx, leaf.ID, "step"); err != nil {
		t.Fatalf("AddChecklistItem() error = %v", err)
	}
	if err := cascade.svc.DeleteTask(ctx, root.ID); err != nil {
		t.Fatalf("DeleteTask(cascade) error = %v", err)
	}
	if _, err := cascade.svc.GetTask(ctx, leaf.ID); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("GetTask(leaf) error = %v, want ErrNotFound", err)
	}
	if _, err := app.ParseDeleteMode("sideways"); !errors.Is(err, app.ErrInvalidDeleteMode) {
		t.Fatalf("ParseDeleteMode(invalid) error = %v", err)
	}
}

func TestChecklistAndComments(t *testing.T) {
	h := newHarness(t, app.ServiceConfig{})
	ctx, owner, _, project := h.workspaceWithProject(t)
	task, _ := h.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: project.ID, Title: "Task"})

	first, err := h.svc.AddChecklistItem(ctx, task.ID, "  one  ")
	if err != nil {
		t.Fatalf("AddChecklistItem() error = %v", err)
	}
	second, _ := h.svc.AddChecklistItem(ctx, task.ID, "two")
	if first.Title != "one" || first.SortOrder != 1 || second.SortOrder != 2 {
		t.Fatalf("unexpected items %#v %#v", first, second)
	}
	if _, err := h.svc.AddChecklistItem(ctx, task.ID, "   "); !errors.Is(err, domain.ErrInvalidTitle) {
		t.Fatalf("AddChecklistItem(blank) error = %v, want ErrInvalidTitle", err)
	}
	updated, err := h.svc.UpdateChecklistItem(ctx, task.ID, first.ID, domain.ChecklistPatch{IsCompleted: ptr(true)})
	if err != nil || !updated.IsCompleted {
		t.Fatalf("UpdateChecklistItem() = %#v, %v", updated, err)
	}
	if err := h.svc.DeleteChecklistItem(ctx, task.ID, second.ID); err != nil {
		t.Fatalf("DeleteChecklistItem() error = %v", err)
	}
	third, _ := h.svc.AddChecklistItem(ctx, task.ID, "three")
	if third.SortOrder != 3 {
		t.Fatalf("sort order after delete = %d, want 3", third.SortOrder)
	}

	comment, err := h.svc.AddComment(ctx, task.ID, "looks good")
	if err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if comment.AuthorID != owner.ID || comment.AuthorName != "Olive Owner" {
		t.Fatalf("unexpected comment %#v", comment)
	}
	if _, err := h.svc.AddComment(ctx, task.ID, " "); !errors.Is(err, domain.ErrInvalidContent) {
		t.Fatalf("AddComment(blank) error = %v, want ErrInvalidContent", err)
	}
	comments, err := h.svc.ListComments(ctx, task.ID)
	if err != nil || len(comments) != 1 {
		t.Fatalf("ListComments() = %#v, %v", comments, err)
	}
}

// memStorage keeps blobs in memory and can be told to fail.
type memStorage struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	failPut bool
}

func newMemStorage() *memStorage {
	return &memStorage{blobs: map[string][]byte{}}
}

func (m *memStorage) Store(_ context.Context, body io.Reader, name, scopeID, _ string) (string, error) {
	if m.failPut {
		return "", errors.New("disk full")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	locator := fmt.Sprintf("mem:%s/%d-%s", scopeID, len(m.blobs), name)
	m.blobs[locator] = data
	return locator, nil
}

func (m *memStorage) Delete(_ context.Context, locator, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, locator)
	return nil
}

func (m *memStorage) Fetch(_ context.Context, locator, _ string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[locator]
	if !ok {
		return nil, app.ErrNotFound
	}
	return data, nil
}

func (m *memStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

func TestAttachments(t *testing.T) {
	store := newMemStorage()
	h := newHarness(t, app.ServiceConfig{UploadMaxBytes: 16}, app.WithFileStorage(store))
	ctx, owner, _, project := h.workspaceWithProject(t)
	task, _ := h.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: project.ID, Title: "Task"})

	body := []byte("hello")
	attachment, err := h.svc.UploadAttachment(ctx, app.UploadAttachmentInput{
		TaskID:   task.ID,
		FileName: "../../etc/notes.txt",
		Size:     int64(len(body)),
		Body:     bytes.NewReader(body),
	})
	if err != nil {
		t.Fatalf("UploadAttachment() error = %v", err)
	}
	if attachment.FileName != "notes.txt" || attachment.UploaderID != owner.ID || attachment.ContentType != domain.DefaultContentType {
		t.Fatalf("unexpected attachment %#v", attachment)
	}
	_, data, err := h.svc.DownloadAttachment(ctx, attachment.ID)
	if err != nil || string(data) != "hello" {
		t.Fatalf("DownloadAttachment() = %q, %v", data, err)
	}

	if _, err := h.svc.UploadAttachment(ctx, app.UploadAttachmentInput{TaskID: task.ID, FileName: "big.bin", Size: 17, Body: bytes.NewReader(make([]byte, 17))}); !errors.Is(err, app.ErrFileTooLarge) {
		t.Fatalf("UploadAttachment(too large) error = %v, want ErrFileTooLarge", err)
	}
	store.failPut = true
	if _, err := h.svc.UploadAttachment(ctx, app.UploadAttachmentInput{TaskID: task.ID, FileName: "a.txt", Size: 1, Body: bytes.NewReader([]byte("a"))}); !errors.Is(err, app.ErrStorage) {
		t.Fatalf("UploadAttachment(storage down) error = %v, want ErrStorage", err)
	}
	store.failPut = false
	list, err := h.svc.ListAttachments(ctx, task.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListAttachments() = %#v, %v", list, err)
	}

	if err := h.svc.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if store.count() != 0 {
		t.Fatalf("expected blobs purged with task, %d left", store.count())
	}
	if _, _, err := h.svc.DownloadAttachment(ctx, attachment.ID); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("DownloadAttachment(after delete) error = %v, want ErrNotFound", err)
	}

	bare := newHarness(t, app.ServiceConfig{})
	bareCtx, _, _, bareProject := bare.workspaceWithProject(t)
	bareTask, _ := bare.svc.CreateTask(bareCtx, app.CreateTaskInput{ProjectID: bareProject.ID, Title: "Task"})
	if _, err := bare.svc.UploadAttachment(bareCtx, app.UploadAttachmentInput{TaskID: bareTask.ID, FileName: "a.txt", Size: 1, Body: bytes.NewReader([]byte("a"))}); !errors.Is(err, app.ErrUnavailable) {
		t.Fatalf("UploadAttachment(no storage) error = %v, want ErrUnavailable", err)
	}
}

// recordingClient returns fixed external ids and records the subjects it was called for.
type recordingClient struct {
	mu       sync.Mutex
	subjects []string
	fail     bool
}

func (c *recordingClient) CreateEvent(_ context.Context, subject string, task domain.Task) (string, error) {
	return c.record(subject, "evt-"+task.ID)
}

func (c *recordingClient) CreateListItem(_ context.Context, subject string, task domain.Task) (string, error) {
	return c.record(subject, "todo-"+task.ID)
}

func (c *recordingClient) record(subject, id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = append(c.subjects, subject)
	if c.fail {
		return "", errors.New("graph down")
	}
	return id, nil
}

func TestSyncDispatcher(t *testing.T) {
	client := &recordingClient{}
	var h *harness
	var dispatcher *app.SyncDispatcher
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	dispatcher = app.NewSyncDispatcher(repo, client, nil, nil, app.SyncDispatcherConfig{Workers: 2, QueueSize: 8, JobTimeout: time.Second})
	h = &harness{repo: repo, now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	h.svc = app.NewService(repo, func() string {
		h.seq++
		return fmt.Sprintf("id-%03d", h.seq)
	}, func() time.Time {
		h.now = h.now.Add(time.Second)
		return h.now
	}, app.ServiceConfig{AutoTodoOnAssign: true}, app.WithSyncQueue(dispatcher))

	ctx, owner, _, project := h.workspaceWithProject(t)
	task, _ := h.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: project.ID, Title: "Ship"})
	if err := h.svc.SyncTaskToCalendar(ctx, task.ID); !errors.Is(err, domain.ErrDueDateRequired) {
		t.Fatalf("SyncTaskToCalendar(no due) error = %v, want ErrDueDateRequired", err)
	}
	due := h.now.Add(72 * time.Hour)
	if _, err := h.svc.UpdateTask(ctx, task.ID, domain.TaskPatch{DueDate: &due}); err != nil {
		t.Fatalf("UpdateTask(due) error = %v", err)
	}

	// jobs submitted before Start are refused and only logged
	if dispatcher.Submit(app.SyncJob{Kind: app.SyncKindTodo, TaskID: task.ID}) {
		t.Fatal("Submit() before Start = true, want false")
	}
	dispatcher.Start()
	if err := h.svc.SyncTaskToCalendar(ctx, task.ID); err != nil {
		t.Fatalf("SyncTaskToCalendar() error = %v", err)
	}
	if _, err := h.svc.UpdateTask(ctx, task.ID, domain.TaskPatch{AssigneeID: ptr(owner.ID)}); err != nil {
		t.Fatalf("UpdateTask(assign) error = %v", err)
	}
	dispatcher.Stop()
	dispatcher.Stop()

	got, err := repo.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.CalendarEventID != "evt-"+task.ID || got.TodoItemID != "todo-"+task.ID {
		t.Fatalf("unexpected correlation ids %q %q", got.CalendarEventID, got.TodoItemID)
	}
	for _, subject := range client.subjects {
		if subject != "sub-owner" {
			t.Fatalf("unexpected sync subject %q", subject)
		}
	}

	if err := h.svc.SyncTaskToTodo(ctx, task.ID); err != nil {
		t.Fatalf("SyncTaskToTodo(after stop) error = %v", err)
	}

	plain := newHarness(t, app.ServiceConfig{})
	plainCtx, _, _, plainProject := plain.workspaceWithProject(t)
	plainTask, _ := plain.svc.CreateTask(plainCtx, app.CreateTaskInput{ProjectID: plainProject.ID, Title: "x"})
	if err := plain.svc.SyncTaskToTodo(plainCtx, plainTask.ID); !errors.Is(err, app.ErrUnavailable) {
		t.Fatalf("SyncTaskToTodo(no queue) error = %v, want ErrUnavailable", err)
	}
}

func TestResolveIdentityPlaceholdersAndConflicts(t *testing.T) {
	h := newHarness(t, app.ServiceConfig{})
	user, err := h.svc.ResolveIdentity(context.Background(), domain.Identity{Subject: "abc-123"})
	if err != nil {
		t.Fatalf("ResolveIdentity() error = %v", err)
	}
	if user.DisplayName != domain.UnknownDisplayName || user.Email != "unknown+abc-123@example.com" {
		t.Fatalf("unexpected placeholder user %#v", user)
	}
	again, err := h.svc.ResolveIdentity(context.Background(), domain.Identity{Subject: "abc-123", Email: "real@example.com"})
	if err != nil || again.ID != user.ID {
		t.Fatalf("ResolveIdentity(again) = %#v, %v", again, err)
	}
	h.signIn(t, "sub-a", "taken@example.com", "A")
	if _, err := h.svc.ResolveIdentity(context.Background(), domain.Identity{Subject: "sub-b", Email: "taken@example.com"}); !errors.Is(err, app.ErrConflict) {
		t.Fatalf("ResolveIdentity(email taken) error = %v, want ErrConflict", err)
	}
	if _, err := h.svc.ResolveIdentity(context.Background(), domain.Identity{}); !errors.Is(err, app.ErrUnauthenticated) {
		t.Fatalf("ResolveIdentity(empty) error = %v, want ErrUnauthenticated", err)
	}
}

// lockstepRepo parks the first two armed ListTasks/ListMembers reads until both
// have happened, so two requests validate against the same snapshot.
type lockstepRepo struct {
	*sqlite.Repository
	armed   atomic.Bool
	parked  atomic.Int32
	arrived sync.WaitGroup
}

func (r *lockstepRepo) arm() {
	r.parked.Store(0)
	r.arrived.Add(2)
	r.armed.Store(true)
}

func (r *lockstepRepo) park() {
	if r.armed.Load() && r.parked.Add(1) <= 2 {
		r.arrived.Done()
		r.arrived.Wait()
	}
}

func (r *lockstepRepo) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	tasks, err := r.Repository.ListTasks(ctx, projectID)
	r.park()
	return tasks, err
}

func (r *lockstepRepo) ListMembers(ctx context.Context, workspaceID string) ([]domain.MemberProfile, error) {
	members, err := r.Repository.ListMembers(ctx, workspaceID)
	r.park()
	return members, err
}

func newLockstepHarness(t *testing.T) (*harness, *lockstepRepo) {
	t.Helper()
	var lockstep *lockstepRepo
	h := newHarnessOver(t, func(repo *sqlite.Repository) app.Repository {
		lockstep = &lockstepRepo{Repository: repo}
		return lockstep
	}, app.ServiceConfig{})
	return h, lockstep
}

// both runs fn(0) and fn(1) concurrently and returns their errors.
func both(fn func(i int) error) []error {
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fn(i)
		}()
	}
	wg.Wait()
	return errs
}

func TestConcurrentReparentsCannotCloseALoop(t *testing.T) {
	h, lockstep := newLockstepHarness(t)
	ctx, _, _, project := h.workspaceWithProject(t)
	a, err := h.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: project.ID, Title: "A"})
	if err != nil {
		t.Fatalf("CreateTask(A) error = %v", err)
	}
	b, err := h.svc.CreateTask(ctx, app.CreateTaskInput{ProjectID: project.ID, Title: "B"})
	if err != nil {
		t.Fatalf("CreateTask(B) error = %v", err)
	}

	lockstep.arm()
	moves := [][2]string{{a.ID, b.ID}, {b.ID, a.ID}}
	errs := both(func(i int) error {
		_, err := h.svc.UpdateTask(ctx, moves[i][0], domain.TaskPatch{ParentID: ptr(moves[i][1])})
		return err
	})
	failed := 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrParentCycle) {
			t.Fatalf("UpdateTask() error = %v, want ErrParentCycle", err)
		}
		failed++
	}
	if failed != 1 {
		t.Fatalf("expected exactly one rejected re-parent, got errs=%v", errs)
	}

	tree, err := h.svc.ListTaskTree(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListTaskTree() error = %v", err)
	}
	if len(tree) != 1 || len(tree[0].Subtasks) != 1 {
		t.Fatalf("expected one root with one subtask, got %#v", tree)
	}
}

func TestConcurrentOwnerDemotionsKeepAnOwner(t *testing.T) {
	h, lockstep := newLockstepHarness(t)
	ownerCtx, owner, ws, _ := h.workspaceWithProject(t)
	if _, err := h.svc.AddMember(ownerCtx, app.AddMemberInput{WorkspaceID: ws.ID, Email: "otto@example.com", Role: "owner"}); err != nil {
		t.Fatalf("AddMember(owner) error = %v", err)
	}
	secondCtx, second := h.signIn(t, "sub-otto", "otto@example.com", "Otto")

	lockstep.arm()
	demotions := []struct {
		ctx    context.Context
		target string
	}{
		{ctx: ownerCtx, target: second.ID},
		{ctx: secondCtx, target: owner.ID},
	}
	errs := both(func(i int) error {
		_, err := h.svc.UpdateMemberRole(demotions[i].ctx, ws.ID, demotions[i].target, "viewer")
		return err
	})
	failed := 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, app.ErrLastOwner) {
			t.Fatalf("UpdateMemberRole() error = %v, want ErrLastOwner", err)
		}
		failed++
	}
	if failed != 1 {
		t.Fatalf("expected exactly one rejected demotion, got errs=%v", errs)
	}

	members, err := h.repo.ListMembers(context.Background(), ws.ID)
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	owners := 0
	for _, m := range members {
		if m.Role == domain.RoleOwner {
			owners++
		}
	}
	if owners != 1 {
		t.Fatalf("expected one owner left, got %d", owners)
	}
}

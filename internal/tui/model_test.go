package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/hylla/nexus/internal/app"
	"github.com/hylla/nexus/internal/domain"
)

type fakeService struct {
	project   domain.Project
	tasks     []domain.Task
	assignees map[string]domain.UserRef
	loadErr   error
	moveErr   error
	moves     []string
}

func newFakeService(tasks ...domain.Task) *fakeService {
	return &fakeService{
		project:   domain.Project{ID: "p1", WorkspaceID: "w1", Name: "Roadmap", Status: domain.ProjectStatusPlanning},
		tasks:     tasks,
		assignees: map[string]domain.UserRef{},
	}
}

func (f *fakeService) GetProject(_ context.Context, id string) (domain.Project, error) {
	if f.loadErr != nil {
		return domain.Project{}, f.loadErr
	}
	if id != f.project.ID {
		return domain.Project{}, app.ErrNotFound
	}
	return f.project, nil
}

func (f *fakeService) ListTaskTree(context.Context, string) ([]domain.TaskNode, error) {
	return domain.BuildForest(f.tasks, f.assignees), nil
}

func (f *fakeService) GetTaskDetail(_ context.Context, id string) (app.TaskDetail, error) {
	for _, task := range f.tasks {
		if task.ID == id {
			return app.TaskDetail{
				Task:      task,
				Checklist: []domain.ChecklistItem{{ID: "c1", TaskID: id, Title: "write notes", IsCompleted: true}},
			}, nil
		}
	}
	return app.TaskDetail{}, app.ErrNotFound
}

func (f *fakeService) UpdateTaskStatus(_ context.Context, id string, status domain.TaskStatus) (domain.Task, error) {
	if f.moveErr != nil {
		return domain.Task{}, f.moveErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Status = status
			f.moves = append(f.moves, fmt.Sprintf("%s->%s", id, status))
			return f.tasks[i], nil
		}
	}
	return domain.Task{}, app.ErrNotFound
}

func sampleTasks() []domain.Task {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return []domain.Task{
		{ID: "t1", ProjectID: "p1", Title: "Plan launch", Status: domain.StatusTodo, Priority: domain.PriorityHigh, Type: domain.TaskTypeTask, AssigneeID: "u1"},
		{ID: "t2", ProjectID: "p1", ParentID: "t1", Title: "Draft copy", Status: domain.StatusTodo, Priority: domain.PriorityMedium, Type: domain.TaskTypeSubtask, DueDate: &due},
		{ID: "t3", ProjectID: "p1", Title: "Ship beta", Status: domain.StatusInProgress, Priority: domain.PriorityUrgent, Type: domain.TaskTypeTask},
	}
}

func TestModelLoadsColumnsByStatus(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	svc.assignees["u1"] = domain.UserRef{ID: "u1", DisplayName: "Ada"}
	m := loadReadyModel(t, NewModel(svc, "p1", WithNow(fixedNow)))

	if m.status != "ready" {
		t.Fatalf("expected ready status, got %q", m.status)
	}
	if len(m.columns) != len(domain.Statuses()) {
		t.Fatalf("expected one column per status, got %d", len(m.columns))
	}
	todo := m.columns[0].cards
	if len(todo) != 2 || todo[0].task.ID != "t1" || todo[1].task.ID != "t2" {
		t.Fatalf("unexpected todo cards %#v", todo)
	}
	if todo[0].depth != 0 || todo[1].depth != 1 {
		t.Fatalf("expected subtask nested under its parent, got depths %d/%d", todo[0].depth, todo[1].depth)
	}
	if todo[0].assignee != "Ada" {
		t.Fatalf("expected assignee name on card, got %q", todo[0].assignee)
	}
	if got := m.columns[1].cards; len(got) != 1 || got[0].task.ID != "t3" {
		t.Fatalf("unexpected in-progress cards %#v", got)
	}

	out := m.renderBoard()
	for _, want := range []string{"Roadmap", "todo (2)", "in progress (1)", "Plan launch", "@Ada"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected board to contain %q\n%s", want, out)
		}
	}
}

func TestModelNavigationAndStatusMove(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	m := loadReadyModel(t, NewModel(svc, "p1", WithNow(fixedNow)))

	m = applyMsg(t, m, keyRune('j'))
	if card, ok := m.selectedCard(); !ok || card.task.ID != "t2" {
		t.Fatalf("expected t2 selected after j, got %#v", card)
	}
	m = applyMsg(t, m, keyRune('k'))
	m = applyMsg(t, m, keyRune(']'))

	if len(svc.moves) != 1 || svc.moves[0] != "t1->in_progress" {
		t.Fatalf("unexpected moves %#v", svc.moves)
	}
	if m.focus != 1 {
		t.Fatalf("expected focus to follow the moved task, got column %d", m.focus)
	}
	if card, ok := m.selectedCard(); !ok || card.task.ID != "t1" {
		t.Fatalf("expected moved task selected, got %#v", card)
	}
	if !strings.Contains(m.status, "moved") {
		t.Fatalf("expected move status, got %q", m.status)
	}

	m = applyMsg(t, m, keyRune('h'))
	m = applyMsg(t, m, keyRune('['))
	if m.status != "no status in that direction" {
		t.Fatalf("expected edge status, got %q", m.status)
	}
}

func TestModelStatusMoveFailureKeepsBoard(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	svc.moveErr = fmt.Errorf("%w: viewer", app.ErrForbidden)
	m := loadReadyModel(t, NewModel(svc, "p1"))

	m = applyMsg(t, m, keyRune(']'))
	if !strings.HasPrefix(m.status, "not allowed") {
		t.Fatalf("expected forbidden status, got %q", m.status)
	}
	if m.focus != 0 || len(m.columns[0].cards) != 2 {
		t.Fatalf("expected board unchanged, focus=%d todo=%d", m.focus, len(m.columns[0].cards))
	}
}

func TestModelDetailAndCopy(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	var copied string
	m := loadReadyModel(t, NewModel(svc, "p1", WithClipboard(func(s string) error {
		copied = s
		return nil
	})))

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.detail == nil || m.detail.Task.ID != "t1" {
		t.Fatalf("expected t1 detail, got %#v", m.detail)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.detail != nil {
		t.Fatal("expected enter to toggle detail off")
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if !strings.Contains(m.renderBoard(), "notes") {
		t.Fatal("expected detail pane to render the checklist")
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.detail != nil {
		t.Fatal("expected esc to close detail")
	}

	m = applyMsg(t, m, keyRune('y'))
	if copied != "t1" || m.status != "copied t1" {
		t.Fatalf("expected t1 copied, got %q status %q", copied, m.status)
	}

	failing := loadReadyModel(t, NewModel(svc, "p1", WithClipboard(func(string) error {
		return errors.New("no display")
	})))
	failing = applyMsg(t, failing, keyRune('y'))
	if !strings.Contains(failing.status, "no display") {
		t.Fatalf("expected copy failure status, got %q", failing.status)
	}
}

func TestModelLoadErrorAndRetry(t *testing.T) {
	svc := newFakeService(sampleTasks()...)
	svc.loadErr = app.ErrUnavailable
	m := loadReadyModel(t, NewModel(svc, "p1"))
	if !errors.Is(m.err, app.ErrUnavailable) {
		t.Fatalf("expected load error, got %v", m.err)
	}
	if v := m.View(); v.Content == nil {
		t.Fatal("expected error view content")
	}

	svc.loadErr = nil
	m = applyMsg(t, m, keyRune('r'))
	if m.err != nil || m.status != "ready" {
		t.Fatalf("expected retry to recover, err=%v status=%q", m.err, m.status)
	}
}

func TestModelQuit(t *testing.T) {
	m := NewModel(newFakeService(), "p1")
	_, cmd := m.Update(keyRune('q'))
	if cmd == nil {
		t.Fatal("expected quit cmd")
	}
}

func TestTaskDetailMarkdown(t *testing.T) {
	tasks := sampleTasks()
	hours := 3.5
	task := tasks[0]
	task.EstimatedHours = &hours
	task.Description = "Coordinate the launch."
	md := TaskDetailMarkdown(app.TaskDetail{
		Task:      task,
		Assignee:  &domain.UserRef{ID: "u1", Email: "ada@example.com"},
		Subtasks:  []domain.Task{tasks[1]},
		Checklist: []domain.ChecklistItem{{Title: "book venue"}, {Title: "send invites", IsCompleted: true}},
		Comments:  []domain.Comment{{AuthorName: "Ada", Content: "on it", CreatedAt: fixedNow()}},
	})
	for _, want := range []string{
		"# Plan launch",
		"**Assignee:** ada@example.com",
		"**Estimate:** 3.5h",
		"Coordinate the launch.",
		"- Draft copy _(todo)_",
		"- [ ] book venue",
		"- [x] send invites",
		"> on it",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("expected markdown to contain %q\n%s", want, md)
		}
	}
	if out := RenderMarkdown(md, 80); !strings.Contains(out, "launch") {
		t.Fatalf("expected rendered markdown to keep the title, got %q", out)
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
}

func loadReadyModel(t *testing.T, m Model) Model {
	t.Helper()
	return applyMsg(t, applyCmd(t, m, m.Init()), tea.WindowSizeMsg{Width: 160, Height: 48})
}

func applyMsg(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return applyCmd(t, out, cmd)
}

func applyCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	out := m
	currentCmd := cmd
	for i := 0; i < 6 && currentCmd != nil; i++ {
		msg := currentCmd()
		updated, nextCmd := out.Update(msg)
		casted, ok := updated.(Model)
		if !ok {
			t.Fatalf("expected Model, got %T", updated)
		}
		out = casted
		currentCmd = nextCmd
	}
	return out
}

func keyRune(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

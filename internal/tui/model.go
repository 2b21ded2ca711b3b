package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"
	"github.com/hylla/nexus/internal/app"
	"github.com/hylla/nexus/internal/domain"
)

// Service is the slice of the application service the board needs.
type Service interface {
	GetProject(context.Context, string) (domain.Project, error)
	ListTaskTree(context.Context, string) ([]domain.TaskNode, error)
	GetTaskDetail(context.Context, string) (app.TaskDetail, error)
	UpdateTaskStatus(context.Context, string, domain.TaskStatus) (domain.Task, error)
}

// boardCard is one task rendered in a status column.
type boardCard struct {
	task     domain.Task
	depth    int
	assignee string
}

// boardColumn groups the cards sharing one status.
type boardColumn struct {
	status domain.TaskStatus
	cards  []boardCard
}

// Model is the bubbletea model for a single project's status board.
type Model struct {
	svc       Service
	ctx       context.Context
	projectID string
	project   domain.Project
	columns   []boardColumn
	focus     int
	cursors   []int

	detail   *app.TaskDetail
	markdown *markdownRenderer

	help   help.Model
	keys   keyMap
	status string
	err    error
	ready  bool
	width  int
	height int

	pendingFocusID string
	copy           func(string) error
	now            func() time.Time
}

type loadedMsg struct {
	project domain.Project
	nodes   []domain.TaskNode
	err     error
}

type detailMsg struct {
	detail app.TaskDetail
	err    error
}

type actionMsg struct {
	status  string
	focusID string
	err     error
}

// NewModel builds a board for one project.
func NewModel(svc Service, projectID string, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	statuses := domain.Statuses()
	columns := make([]boardColumn, 0, len(statuses))
	for _, status := range statuses {
		columns = append(columns, boardColumn{status: status})
	}
	m := Model{
		svc:       svc,
		ctx:       context.Background(),
		projectID: strings.TrimSpace(projectID),
		columns:   columns,
		cursors:   make([]int, len(columns)),
		markdown:  &markdownRenderer{},
		help:      h,
		keys:      newKeyMap(),
		status:    "loading...",
		copy:      clipboard.WriteAll,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init loads the board.
func (m Model) Init() tea.Cmd {
	return m.loadBoard
}

// Update applies one message to the board.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.project = msg.project
		m.fillColumns(msg.nodes)
		if m.pendingFocusID != "" {
			m.focusTask(m.pendingFocusID)
			m.pendingFocusID = ""
		}
		m.clampCursors()
		if m.status == "" || m.status == "loading..." || m.status == "reloading..." {
			m.status = "ready"
		}
		return m, nil

	case detailMsg:
		if msg.err != nil {
			m.status = "detail failed: " + msg.err.Error()
			return m, nil
		}
		detail := msg.detail
		m.detail = &detail
		m.status = "detail"
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.status = actionFailure(msg.err)
			return m, nil
		}
		m.status = msg.status
		m.pendingFocusID = msg.focusID
		return m, m.loadBoard

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	default:
		return m, nil
	}
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.back):
		if m.detail != nil {
			m.detail = nil
			m.status = "ready"
		} else if m.help.ShowAll {
			m.help.ShowAll = false
		}
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.err = nil
		m.status = "reloading..."
		return m, m.loadBoard
	}
	if m.err != nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.focusLeft):
		if m.focus > 0 {
			m.focus--
			m.detail = nil
		}
		return m, nil
	case key.Matches(msg, m.keys.focusRight):
		if m.focus < len(m.columns)-1 {
			m.focus++
			m.detail = nil
		}
		return m, nil
	case key.Matches(msg, m.keys.selectDown):
		if cards := m.columns[m.focus].cards; m.cursors[m.focus] < len(cards)-1 {
			m.cursors[m.focus]++
			m.detail = nil
		}
		return m, nil
	case key.Matches(msg, m.keys.selectUp):
		if m.cursors[m.focus] > 0 {
			m.cursors[m.focus]--
			m.detail = nil
		}
		return m, nil
	case key.Matches(msg, m.keys.statusLeft):
		return m.shiftStatus(-1)
	case key.Matches(msg, m.keys.statusRight):
		return m.shiftStatus(1)
	case key.Matches(msg, m.keys.detail):
		if m.detail != nil {
			m.detail = nil
			m.status = "ready"
			return m, nil
		}
		card, ok := m.selectedCard()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.status = "loading detail..."
		return m, m.loadDetail(card.task.ID)
	case key.Matches(msg, m.keys.copyID):
		card, ok := m.selectedCard()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		if err := m.copy(card.task.ID); err != nil {
			m.status = "copy failed: " + err.Error()
			return m, nil
		}
		m.status = "copied " + card.task.ID
		return m, nil
	}
	return m, nil
}

// shiftStatus moves the selected task to the neighboring status column.
func (m Model) shiftStatus(delta int) (tea.Model, tea.Cmd) {
	card, ok := m.selectedCard()
	if !ok {
		m.status = "no task selected"
		return m, nil
	}
	target := m.focus + delta
	if target < 0 || target >= len(m.columns) {
		m.status = "no status in that direction"
		return m, nil
	}
	status := m.columns[target].status
	taskID := card.task.ID
	title := card.task.Title
	m.detail = nil
	m.status = "moving..."
	return m, func() tea.Msg {
		if _, err := m.svc.UpdateTaskStatus(m.ctx, taskID, status); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{
			status:  fmt.Sprintf("moved %q to %s", truncate(title, 28), statusLabel(status)),
			focusID: taskID,
		}
	}
}

func (m Model) loadBoard() tea.Msg {
	project, err := m.svc.GetProject(m.ctx, m.projectID)
	if err != nil {
		return loadedMsg{err: err}
	}
	nodes, err := m.svc.ListTaskTree(m.ctx, project.ID)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{project: project, nodes: nodes}
}

func (m Model) loadDetail(taskID string) tea.Cmd {
	return func() tea.Msg {
		detail, err := m.svc.GetTaskDetail(m.ctx, taskID)
		return detailMsg{detail: detail, err: err}
	}
}

// fillColumns flattens the task forest depth-first into status columns.
func (m *Model) fillColumns(nodes []domain.TaskNode) {
	for i := range m.columns {
		m.columns[i].cards = nil
	}
	var walk func([]domain.TaskNode, int)
	walk = func(level []domain.TaskNode, depth int) {
		for _, node := range level {
			card := boardCard{task: node.Task, depth: depth}
			if node.Assignee != nil {
				card.assignee = node.Assignee.DisplayName
			}
			if idx := m.columnIndex(node.Status); idx >= 0 {
				m.columns[idx].cards = append(m.columns[idx].cards, card)
			}
			walk(node.Subtasks, depth+1)
		}
	}
	walk(nodes, 0)
}

func (m Model) columnIndex(status domain.TaskStatus) int {
	return slices.IndexFunc(m.columns, func(c boardColumn) bool { return c.status == status })
}

func (m *Model) focusTask(taskID string) {
	for col, column := range m.columns {
		for row, card := range column.cards {
			if card.task.ID == taskID {
				m.focus = col
				m.cursors[col] = row
				return
			}
		}
	}
}

func (m *Model) clampCursors() {
	m.focus = clamp(m.focus, 0, len(m.columns)-1)
	for i, column := range m.columns {
		m.cursors[i] = clamp(m.cursors[i], 0, len(column.cards)-1)
	}
}

func (m Model) selectedCard() (boardCard, bool) {
	if m.focus < 0 || m.focus >= len(m.columns) {
		return boardCard{}, false
	}
	cards := m.columns[m.focus].cards
	if len(cards) == 0 {
		return boardCard{}, false
	}
	return cards[clamp(m.cursors[m.focus], 0, len(cards)-1)], true
}

// View renders the board, the optional detail pane and the help footer.
func (m Model) View() tea.View {
	var content string
	switch {
	case m.err != nil:
		content = "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	case !m.ready:
		content = "loading..."
	default:
		content = m.renderBoard()
	}
	v := tea.NewView(content)
	v.AltScreen = true
	return v
}

func (m Model) renderBoard() string {
	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	warn := lipgloss.Color("203")

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	header := titleStyle.Render(m.project.Name)
	if m.project.Status != "" {
		header += " " + statusStyle.Render("("+string(m.project.Status)+")")
	}

	colWidth := max(18, (m.width-2)/max(1, len(m.columns))-2)
	rendered := make([]string, 0, len(m.columns))
	today := m.now()
	for i, column := range m.columns {
		focused := i == m.focus
		border := dim
		if focused {
			border = accent
		}
		lines := []string{
			lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%s (%d)", statusLabel(column.status), len(column.cards))),
		}
		for row, card := range column.cards {
			line := strings.Repeat("  ", card.depth)
			if card.depth > 0 {
				line += "↳ "
			}
			line += truncate(card.task.Title, max(4, colWidth-4-2*card.depth))
			style := lipgloss.NewStyle()
			if card.task.IsOverdue(today) {
				style = style.Foreground(warn)
			}
			if focused && row == m.cursors[i] {
				style = style.Bold(true).Foreground(accent)
				line = "› " + line
			} else {
				line = "  " + line
			}
			lines = append(lines, style.Render(line))
			if card.assignee != "" {
				lines = append(lines, lipgloss.NewStyle().Foreground(muted).Render("    @"+truncate(card.assignee, colWidth-6)))
			}
		}
		if len(column.cards) == 0 {
			lines = append(lines, lipgloss.NewStyle().Foreground(muted).Render("  (empty)"))
		}
		box := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1).
			Width(colWidth).
			Render(strings.Join(lines, "\n"))
		rendered = append(rendered, box)
	}
	board := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)

	sections := []string{header, board}
	if m.detail != nil {
		pane := m.markdown.render(TaskDetailMarkdown(*m.detail), max(24, m.width-4))
		sections = append(sections, lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1).
			Render(pane))
	}
	if m.status != "" {
		sections = append(sections, statusStyle.Render(m.status))
	}
	body := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	if m.height > 0 {
		body = fitLines(body, max(0, m.height-lipgloss.Height(helpLine)))
	}
	return body + "\n" + helpLine
}

// TaskDetailMarkdown renders a task and everything it owns as markdown.
func TaskDetailMarkdown(detail app.TaskDetail) string {
	task := detail.Task
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", task.Title)
	fmt.Fprintf(&b, "- **ID:** `%s`\n", task.ID)
	fmt.Fprintf(&b, "- **Status:** %s\n", statusLabel(task.Status))
	fmt.Fprintf(&b, "- **Priority:** %s\n", task.Priority)
	fmt.Fprintf(&b, "- **Type:** %s\n", task.Type)
	if detail.Assignee != nil {
		fmt.Fprintf(&b, "- **Assignee:** %s\n", userLabel(*detail.Assignee))
	}
	if detail.Creator != nil {
		fmt.Fprintf(&b, "- **Creator:** %s\n", userLabel(*detail.Creator))
	}
	if task.DueDate != nil {
		fmt.Fprintf(&b, "- **Due:** %s\n", task.DueDate.Format("2006-01-02"))
	}
	if task.EstimatedHours != nil {
		fmt.Fprintf(&b, "- **Estimate:** %.1fh\n", *task.EstimatedHours)
	}
	if task.IsMilestone {
		b.WriteString("- **Milestone**\n")
	}
	if desc := strings.TrimSpace(task.Description); desc != "" {
		fmt.Fprintf(&b, "\n%s\n", desc)
	}
	if len(detail.Subtasks) > 0 {
		b.WriteString("\n## Subtasks\n\n")
		for _, sub := range detail.Subtasks {
			fmt.Fprintf(&b, "- %s _(%s)_\n", sub.Title, statusLabel(sub.Status))
		}
	}
	if len(detail.Checklist) > 0 {
		b.WriteString("\n## Checklist\n\n")
		for _, item := range detail.Checklist {
			mark := " "
			if item.IsCompleted {
				mark = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s\n", mark, item.Title)
		}
	}
	if len(detail.Comments) > 0 {
		b.WriteString("\n## Comments\n\n")
		for _, comment := range detail.Comments {
			fmt.Fprintf(&b, "**%s** %s\n\n> %s\n\n", comment.AuthorName, comment.CreatedAt.Format("2006-01-02 15:04"), comment.Content)
		}
	}
	if len(detail.Attachments) > 0 {
		b.WriteString("\n## Attachments\n\n")
		for _, att := range detail.Attachments {
			fmt.Fprintf(&b, "- %s (%d bytes)\n", att.FileName, att.Size)
		}
	}
	return b.String()
}

// RenderMarkdown renders markdown for a terminal of the given width.
func RenderMarkdown(markdown string, width int) string {
	var r markdownRenderer
	return r.render(markdown, width)
}

func userLabel(ref domain.UserRef) string {
	if ref.DisplayName != "" {
		return ref.DisplayName
	}
	return ref.Email
}

func statusLabel(status domain.TaskStatus) string {
	return strings.ReplaceAll(string(status), "_", " ")
}

// actionFailure words a failed mutation for the status line.
func actionFailure(err error) string {
	switch {
	case errors.Is(err, app.ErrForbidden):
		return "not allowed: " + err.Error()
	case errors.Is(err, domain.ErrValidation):
		return "invalid: " + err.Error()
	default:
		return "failed: " + err.Error()
	}
}

func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines pads or truncates content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	if limit <= 1 {
		return string(rs[:limit])
	}
	return string(rs[:limit-1]) + "…"
}

package domain

import (
	"cmp"
	"slices"
)

// TaskNode is one task with its assignee and nested subtasks.
type TaskNode struct {
	Task
	Assignee *UserRef
	Subtasks []TaskNode
}

// TaskIndex maps task ids to tasks for one project.
type TaskIndex map[string]Task

// IndexTasks builds an id index over a flat task list.
func IndexTasks(tasks []Task) TaskIndex {
	index := make(TaskIndex, len(tasks))
	for _, task := range tasks {
		index[task.ID] = task
	}
	return index
}

// BuildForest groups a flat task list into root nodes with nested subtasks,
// siblings ordered by sort order then creation time. Tasks whose parent is
// missing from the list are treated as roots.
func BuildForest(tasks []Task, users map[string]UserRef) []TaskNode {
	index := IndexTasks(tasks)
	children := make(map[string][]Task, len(tasks))
	roots := make([]Task, 0, len(tasks))
	for _, task := range tasks {
		if _, ok := index[task.ParentID]; task.ParentID == "" || !ok {
			roots = append(roots, task)
			continue
		}
		children[task.ParentID] = append(children[task.ParentID], task)
	}

	visited := make(map[string]struct{}, len(tasks))
	var build func(level []Task) []TaskNode
	build = func(level []Task) []TaskNode {
		SortSiblings(level)
		out := make([]TaskNode, 0, len(level))
		for _, task := range level {
			if _, seen := visited[task.ID]; seen {
				continue
			}
			visited[task.ID] = struct{}{}
			node := TaskNode{Task: task, Subtasks: build(children[task.ID])}
			if ref, ok := users[task.AssigneeID]; ok && task.AssigneeID != "" {
				node.Assignee = &ref
			}
			out = append(out, node)
		}
		return out
	}
	return build(roots)
}

// SortSiblings orders tasks by sort order, then creation time, then id.
func SortSiblings(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		return cmp.Or(
			cmp.Compare(a.SortOrder, b.SortOrder),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
}

// ValidateParent checks that parentID may become the parent of taskID inside projectID.
// The walk climbs from the proposed parent toward the root and fails if it meets taskID.
// A chain longer than the index means corrupted data and is rejected as a cycle.
func (idx TaskIndex) ValidateParent(taskID, parentID, projectID string) error {
	if parentID == "" {
		return nil
	}
	if parentID == taskID {
		return ErrParentCycle
	}
	parent, ok := idx[parentID]
	if !ok {
		return ErrInvalidParentID
	}
	if parent.ProjectID != projectID {
		return ErrParentOutsideProject
	}
	maxDepth := len(idx) + 1
	cur := parent
	for depth := 0; ; depth++ {
		if cur.ID == taskID {
			return ErrParentCycle
		}
		if cur.ParentID == "" {
			return nil
		}
		if depth > maxDepth {
			return ErrParentCycle
		}
		next, ok := idx[cur.ParentID]
		if !ok {
			return nil
		}
		cur = next
	}
}

// Children returns the direct subtasks of id in sibling order.
func (idx TaskIndex) Children(id string) []Task {
	out := make([]Task, 0)
	for _, task := range idx {
		if task.ParentID == id {
			out = append(out, task)
		}
	}
	SortSiblings(out)
	return out
}

// Descendants returns every task below id, parents before children.
func (idx TaskIndex) Descendants(id string) []Task {
	out := make([]Task, 0)
	seen := map[string]struct{}{id: {}}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range idx.Children(cur) {
			if _, ok := seen[child.ID]; ok {
				continue
			}
			seen[child.ID] = struct{}{}
			out = append(out, child)
			queue = append(queue, child.ID)
		}
	}
	return out
}

// NextSortOrder returns one past the largest sort order among tasks sharing parentID.
func (idx TaskIndex) NextSortOrder(parentID string) int {
	next := 0
	for _, task := range idx {
		if task.ParentID == parentID && task.SortOrder >= next {
			next = task.SortOrder + 1
		}
	}
	return next
}

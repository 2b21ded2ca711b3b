package domain

import "time"

// Workload is one member's assigned-task counts.
type Workload struct {
	UserID      string
	DisplayName string
	Email       string
	AvatarURL   string
	Role        Role
	TotalTasks  int
	Todo        int
	InProgress  int
	Done        int
	Overdue     int
}

// ComputeWorkload counts tasks per member. InReview and Cancelled tasks count
// toward the total only. Overdue uses IsOverdue, so any not-done task with a
// past due date is included. Tasks assigned to non-members are ignored.
func ComputeWorkload(members []MemberProfile, tasks []Task, now time.Time) []Workload {
	now = now.UTC()
	out := make([]Workload, 0, len(members))
	byUser := make(map[string]int, len(members))
	for _, m := range members {
		byUser[m.UserID] = len(out)
		out = append(out, Workload{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Email:       m.Email,
			AvatarURL:   m.AvatarURL,
			Role:        m.Role,
		})
	}
	for _, task := range tasks {
		i, ok := byUser[task.AssigneeID]
		if task.AssigneeID == "" || !ok {
			continue
		}
		w := &out[i]
		w.TotalTasks++
		switch task.Status {
		case StatusTodo:
			w.Todo++
		case StatusInProgress:
			w.InProgress++
		case StatusDone:
			w.Done++
		}
		if task.IsOverdue(now) {
			w.Overdue++
		}
	}
	return out
}

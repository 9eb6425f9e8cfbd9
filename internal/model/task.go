package model

import (
	"fmt"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// Statuses lists every valid status in display order.
var Statuses = []TaskStatus{StatusPending, StatusInProgress, StatusCompleted}

// ParseStatus validates a status string. The empty string is accepted and means "unset".
func ParseStatus(s string) (TaskStatus, error) {
	if s == "" {
		return "", nil
	}
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid status: %s (must be pending, in_progress or completed)", s)
}

// Label returns the human-readable status name.
func (s TaskStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// Task is a single task owned by a user.
type Task struct {
	ID          int        `json:"id"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	UserID      int        `json:"user_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
}

// Key returns the task ID.
func (t Task) Key() int { return t.ID }

// TaskCreateRequest is the body of POST /tasks.
type TaskCreateRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      TaskStatus `json:"status,omitempty"`
}

// TaskUpdateRequest is the body of PUT /tasks/{id}. Nil fields are left unchanged.
type TaskUpdateRequest struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (r TaskUpdateRequest) IsEmpty() bool {
	return r.Title == nil && r.Description == nil && r.Status == nil
}

// TaskFilter selects a page of tasks. Zero values are omitted from the query.
type TaskFilter struct {
	Page   int
	Limit  int
	Status TaskStatus
	Search string
}

// UserFilter selects a page of users. Zero values are omitted from the query.
type UserFilter struct {
	Page  int
	Limit int
}

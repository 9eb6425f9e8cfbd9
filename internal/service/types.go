package service

import (
	"context"
	"time"

	"taskctl/internal/model"
)

// TokenInfo is the decoded, unverified content of an access token.
type TokenInfo struct {
	UserID    int
	Email     string
	Role      model.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token's expiry has passed at now.
func (t TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// ExternalTask is an open task read from another provider for import.
type ExternalTask struct {
	ID     string
	Title  string
	Notes  string
	Due    *time.Time
	Status string // "needsAction" or "completed"
}

// ExternalList is a task list at another provider.
type ExternalList struct {
	ID        string
	Title     string
	IsDefault bool
}

// ImportSource reads tasks from another provider.
type ImportSource interface {
	// DefaultList returns the provider's default list.
	DefaultList(ctx context.Context) (ExternalList, error)

	// ListLists returns all lists in provider order.
	ListLists(ctx context.Context) ([]ExternalList, error)

	// ResolveList finds a list by name (case-insensitive, trimmed).
	// Returns error if not found or ambiguous.
	ResolveList(ctx context.Context, name string) (ExternalList, error)

	// ListOpenTasks returns open tasks for a list.
	// page is 1-based. Returns an empty slice if page is out of range.
	ListOpenTasks(ctx context.Context, listID string, page int) ([]ExternalTask, error)

	// CompleteTask marks a source task as completed.
	CompleteTask(ctx context.Context, listID, taskID string) error
}

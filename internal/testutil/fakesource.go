package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"taskctl/internal/service"
)

// DefaultListID is the ID used for the default list.
const DefaultListID = "@default"

// ErrNotFound is returned when a resource is not found.
var ErrNotFound = errors.New("not found")

// ErrAmbiguous is returned when multiple matches are found.
var ErrAmbiguous = errors.New("ambiguous")

// FakeSource is an in-memory implementation of service.ImportSource for testing.
type FakeSource struct {
	mu        sync.RWMutex
	lists     []service.ExternalList
	tasks     map[string][]service.ExternalTask // listID -> tasks
	completed []string

	// PageSize splits ListOpenTasks results; 0 means everything on page 1.
	PageSize int

	// Error injection for testing
	DefaultListErr   error
	ListListsErr     error
	ResolveListErr   error
	ListOpenTasksErr map[string]error // listID -> error
	CompleteTaskErr  error
}

var _ service.ImportSource = (*FakeSource)(nil)

// NewFakeSource creates a new FakeSource with a default list.
func NewFakeSource() *FakeSource {
	fs := &FakeSource{
		tasks:            make(map[string][]service.ExternalTask),
		ListOpenTasksErr: make(map[string]error),
	}
	fs.lists = []service.ExternalList{
		{ID: DefaultListID, Title: "My Tasks", IsDefault: true},
	}
	return fs
}

// AddList adds a list to the fake source.
func (f *FakeSource) AddList(id, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, service.ExternalList{ID: id, Title: title})
}

// AddTask adds an open task to a list.
func (f *FakeSource) AddTask(listID string, task service.ExternalTask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task.Status == "" {
		task.Status = "needsAction"
	}
	f.tasks[listID] = append(f.tasks[listID], task)
}

// Completed returns "listID/taskID" for every task marked completed.
func (f *FakeSource) Completed() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.completed...)
}

// DefaultList implements service.ImportSource.
func (f *FakeSource) DefaultList(ctx context.Context) (service.ExternalList, error) {
	if f.DefaultListErr != nil {
		return service.ExternalList{}, f.DefaultListErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, l := range f.lists {
		if l.IsDefault {
			return l, nil
		}
	}
	return service.ExternalList{}, errors.New("no default list")
}

// ListLists implements service.ImportSource.
func (f *FakeSource) ListLists(ctx context.Context) ([]service.ExternalList, error) {
	if f.ListListsErr != nil {
		return nil, f.ListListsErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]service.ExternalList(nil), f.lists...), nil
}

// ResolveList implements service.ImportSource.
func (f *FakeSource) ResolveList(ctx context.Context, name string) (service.ExternalList, error) {
	if f.ResolveListErr != nil {
		return service.ExternalList{}, f.ResolveListErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	name = strings.TrimSpace(name)
	var matches []service.ExternalList
	for _, l := range f.lists {
		if strings.EqualFold(strings.TrimSpace(l.Title), name) {
			matches = append(matches, l)
		}
	}

	switch len(matches) {
	case 0:
		return service.ExternalList{}, ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return service.ExternalList{}, ErrAmbiguous
	}
}

// ListOpenTasks implements service.ImportSource.
func (f *FakeSource) ListOpenTasks(ctx context.Context, listID string, page int) ([]service.ExternalTask, error) {
	if err := f.ListOpenTasksErr[listID]; err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	var open []service.ExternalTask
	for _, t := range f.tasks[listID] {
		if t.Status != "completed" {
			open = append(open, t)
		}
	}
	size := f.PageSize
	if size <= 0 {
		size = len(open) + 1
	}
	start := (page - 1) * size
	if page < 1 || start >= len(open) {
		return nil, nil
	}
	end := min(start+size, len(open))
	return append([]service.ExternalTask(nil), open[start:end]...), nil
}

// CompleteTask implements service.ImportSource.
func (f *FakeSource) CompleteTask(ctx context.Context, listID, taskID string) error {
	if f.CompleteTaskErr != nil {
		return f.CompleteTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks[listID] {
		if t.ID == taskID {
			f.tasks[listID][i].Status = "completed"
			f.completed = append(f.completed, listID+"/"+taskID)
			return nil
		}
	}
	return ErrNotFound
}

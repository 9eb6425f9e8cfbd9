package resource

import (
	"context"

	"taskctl/internal/api"
	"taskctl/internal/model"
	"taskctl/internal/notify"
)

const tasksPath = "/tasks"

// TaskCache is the cache for the caller's tasks.
type TaskCache struct {
	*Cache[model.Task]
}

// NewTaskCache returns an empty task cache.
func NewTaskCache(client Client, sink notify.Sink, opts ...Option) *TaskCache {
	return &TaskCache{newCache[model.Task](client, tasksPath, "tasks", sink, opts)}
}

func taskQuery(f model.TaskFilter) query {
	return pageQuery(f.Page, f.Limit).
		withString("status", string(f.Status)).
		withString("search", f.Search)
}

// List replaces the cached page with the one selected by f. On failure the
// items are cleared and the paging metadata kept.
func (c *TaskCache) List(ctx context.Context, f model.TaskFilter) bool {
	return c.list(ctx, taskQuery(f))
}

// Count returns the number of tasks matching f's status and search. When ok
// is false, status is the HTTP status that rejected the request, or 0 when no
// response arrived.
func (c *TaskCache) Count(ctx context.Context, f model.TaskFilter) (n, status int, ok bool) {
	f.Page, f.Limit = 1, 1
	return c.count(ctx, taskQuery(f))
}

// Create adds a task, then reloads the current page once. The new task is not
// inserted locally.
func (c *TaskCache) Create(ctx context.Context, req model.TaskCreateRequest) *model.Task {
	out, err := c.client.Post(ctx, c.path, req)
	if err != nil || out == nil || !out.OK {
		c.logFailure("create", err)
		return nil
	}
	task, err := api.Decode[model.Task](out)
	if err != nil {
		c.logFailure("create", err)
		return nil
	}
	notify.Send(c.sink, notify.Success, "Task created")
	c.reload(ctx)
	return &task
}

// Update applies patch and replaces the cached copy of the task, if present.
func (c *TaskCache) Update(ctx context.Context, id int, patch model.TaskUpdateRequest) *model.Task {
	out, err := c.client.Put(ctx, c.itemPath(id), patch)
	if err != nil || out == nil || !out.OK {
		c.logFailure("update", err)
		return nil
	}
	task, err := api.Decode[model.Task](out)
	if err != nil {
		c.logFailure("update", err)
		return nil
	}
	notify.Send(c.sink, notify.Success, "Task updated")
	c.replace(task)
	return &task
}

// Remove deletes a task and drops it from the cached page. The total is
// decremented; later pages are not shifted.
func (c *TaskCache) Remove(ctx context.Context, id int) bool {
	out, err := c.client.Delete(ctx, c.itemPath(id))
	if err != nil || out == nil || !out.OK {
		c.logFailure("remove", err)
		return false
	}
	notify.Send(c.sink, notify.Success, "Task deleted")
	c.drop(id)
	return true
}

package resource

import (
	"context"

	"taskctl/internal/model"
	"taskctl/internal/notify"
)

const usersPath = "/admin/users"

// UserCache is the read-only admin view of all accounts.
type UserCache struct {
	*Cache[model.User]
}

// NewUserCache returns an empty user cache.
func NewUserCache(client Client, sink notify.Sink, opts ...Option) *UserCache {
	return &UserCache{newCache[model.User](client, usersPath, "users", sink, opts)}
}

// List replaces the cached page with the one selected by f.
func (c *UserCache) List(ctx context.Context, f model.UserFilter) bool {
	return c.list(ctx, pageQuery(f.Page, f.Limit))
}

// Count returns the number of accounts.
// The status result follows TaskCache.Count.
func (c *UserCache) Count(ctx context.Context) (n, status int, ok bool) {
	return c.count(ctx, pageQuery(1, 1))
}

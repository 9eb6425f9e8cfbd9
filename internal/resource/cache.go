// Package resource keeps a paginated local copy of a server-side collection and
// issues the CRUD calls that keep it loosely in sync.
//
// Operations never return errors. Failures are reported by the dispatcher's
// notifications and surface here as nil, false or an empty page.
package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"taskctl/internal/api"
	"taskctl/internal/model"
	"taskctl/internal/notify"
)

// errRejected marks a list request the server answered with 401.
var errRejected = errors.New("unauthorized")

// Client is the subset of api.Client a cache needs.
type Client interface {
	Get(ctx context.Context, endpoint string, opts ...api.RequestOption) (*api.Outcome, error)
	Post(ctx context.Context, endpoint string, body any, opts ...api.RequestOption) (*api.Outcome, error)
	Put(ctx context.Context, endpoint string, body any, opts ...api.RequestOption) (*api.Outcome, error)
	Delete(ctx context.Context, endpoint string, opts ...api.RequestOption) (*api.Outcome, error)
}

// Keyed records are matched by ID.
type Keyed interface {
	Key() int
}

// Option configures a cache.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Cache owns one page of a collection. List calls are last-issued-wins: a
// response that arrives after a newer List was issued is dropped.
type Cache[T Keyed] struct {
	client     Client
	path       string
	collection string
	sink       notify.Sink
	logger     *slog.Logger

	mu      sync.Mutex
	state   model.Page[T]
	seq     uint64
	loading int
}

func newCache[T Keyed](client Client, path, collection string, sink notify.Sink, opts []Option) *Cache[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if sink == nil {
		sink = notify.Discard
	}
	return &Cache[T]{
		client:     client,
		path:       path,
		collection: collection,
		sink:       sink,
		logger:     o.logger.With("resource", collection),
		state:      model.NewPage[T](),
	}
}

// Snapshot returns a copy of the cached page.
func (c *Cache[T]) Snapshot() model.Page[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.state
	p.Items = append([]T{}, c.state.Items...)
	return p
}

// Loading reports whether a List is in flight.
func (c *Cache[T]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading > 0
}

// GetOne fetches a single record. The cached page is not touched.
func (c *Cache[T]) GetOne(ctx context.Context, id int) *T {
	out, err := c.client.Get(ctx, c.itemPath(id))
	if err != nil || out == nil || !out.OK {
		c.logFailure("get", err)
		return nil
	}
	v, err := api.Decode[T](out)
	if err != nil {
		c.logFailure("get", err)
		return nil
	}
	return &v
}

// Next loads the following page at the current limit. It issues no request on
// the last page.
func (c *Cache[T]) Next(ctx context.Context) bool {
	p := c.Snapshot()
	if !p.HasNextPage() {
		return false
	}
	return c.list(ctx, pageQuery(p.Page+1, p.Limit))
}

// Prev loads the preceding page at the current limit. It issues no request on
// the first page.
func (c *Cache[T]) Prev(ctx context.Context) bool {
	p := c.Snapshot()
	if !p.HasPrevPage() {
		return false
	}
	return c.list(ctx, pageQuery(p.Page-1, p.Limit))
}

// GoTo loads page n at the current limit. Pages outside [1, TotalPages] are ignored.
func (c *Cache[T]) GoTo(ctx context.Context, n int) bool {
	p := c.Snapshot()
	if !p.InRange(n) {
		return false
	}
	return c.list(ctx, pageQuery(n, p.Limit))
}

// reload fetches the current page again at the current limit.
func (c *Cache[T]) reload(ctx context.Context) bool {
	p := c.Snapshot()
	return c.list(ctx, pageQuery(p.Page, p.Limit))
}

func (c *Cache[T]) list(ctx context.Context, q query) bool {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.loading++
	c.mu.Unlock()

	page, err := c.fetch(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading--
	if seq != c.seq {
		c.logger.Debug("discarding superseded list response", "query", q.String())
		return false
	}
	if err != nil {
		c.logFailure("list", err)
		c.state.Items = []T{}
		return false
	}
	c.state = page
	return true
}

// count reads the total for q without changing the cached page. On failure
// status is the HTTP status of the rejection, 0 when there was no response.
func (c *Cache[T]) count(ctx context.Context, q query) (n, status int, ok bool) {
	page, err := c.fetch(ctx, q)
	if err != nil {
		c.logFailure("count", err)
		return 0, failureStatus(err), false
	}
	return page.Total, 0, true
}

func failureStatus(err error) int {
	var se *api.StatusError
	switch {
	case errors.As(err, &se):
		return se.Status
	case errors.Is(err, errRejected):
		return http.StatusUnauthorized
	default:
		return 0
	}
}

func (c *Cache[T]) fetch(ctx context.Context, q query) (model.Page[T], error) {
	out, err := c.client.Get(ctx, c.path+q.String())
	if err != nil {
		return model.Page[T]{}, err
	}
	if out == nil || !out.OK {
		return model.Page[T]{}, fmt.Errorf("list %s: %w", c.collection, errRejected)
	}
	return decodePage[T](out.Body, c.collection)
}

// replace swaps in v for the first cached item with the same key.
func (c *Cache[T]) replace(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.state.Items {
		if c.state.Items[i].Key() == v.Key() {
			c.state.Items[i] = v
			return
		}
	}
}

// drop removes items with the given key and decrements the total, never below zero.
func (c *Cache[T]) drop(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := make([]T, 0, len(c.state.Items))
	for _, it := range c.state.Items {
		if it.Key() != id {
			kept = append(kept, it)
		}
	}
	c.state.Items = kept
	c.state.Total = max(0, c.state.Total-1)
}

func (c *Cache[T]) itemPath(id int) string {
	return c.path + "/" + strconv.Itoa(id)
}

func (c *Cache[T]) logFailure(op string, err error) {
	if err == nil {
		c.logger.Debug(op + " rejected")
		return
	}
	c.logger.Debug(op+" failed", "error", err)
}

// decodePage reads {<collection>: [...], total, page, limit}. Missing page and
// limit take the defaults; a missing collection is an empty page.
func decodePage[T any](body json.RawMessage, collection string) (model.Page[T], error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return model.Page[T]{}, fmt.Errorf("decode %s page: %w", collection, err)
	}

	page := model.Page[T]{Items: []T{}}
	if items, ok := raw[collection]; ok && string(items) != "null" {
		if err := json.Unmarshal(items, &page.Items); err != nil {
			return model.Page[T]{}, fmt.Errorf("decode %s: %w", collection, err)
		}
	}
	for key, dst := range map[string]*int{"total": &page.Total, "page": &page.Page, "limit": &page.Limit} {
		v, ok := raw[key]
		if !ok || string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return model.Page[T]{}, fmt.Errorf("decode %s %s: %w", collection, key, err)
		}
	}
	if page.Page == 0 {
		page.Page = model.DefaultPage
	}
	if page.Limit == 0 {
		page.Limit = model.DefaultLimit
	}
	return page, nil
}

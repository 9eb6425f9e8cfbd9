// Package rest implements service.Service against the task REST API.
package rest

import (
	"context"
	"log/slog"
	"time"

	"taskctl/internal/api"
	"taskctl/internal/model"
	"taskctl/internal/notify"
	"taskctl/internal/resource"
	"taskctl/internal/service"
	"taskctl/internal/session"
	"taskctl/internal/storage"
)

const oauthEndpoint = "/auth/oauth/google"

// Options configures a Backend.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Store     storage.Store
	Sink      notify.Sink
	Logger    *slog.Logger

	// ClientOptions are applied after the ones derived from the fields above.
	ClientOptions []api.Option
}

// Backend wires one dispatcher, one session and the resource caches together.
type Backend struct {
	client  *api.Client
	session *session.Session
	tasks   *resource.TaskCache
	users   *resource.UserCache
}

var _ service.Service = (*Backend)(nil)

// New builds a Backend. The session is restored from opts.Store immediately.
func New(opts Options) *Backend {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := opts.Store
	if store == nil {
		store = storage.NewMemoryStore()
	}

	clientOpts := []api.Option{
		api.WithNotifier(opts.Sink),
		api.WithLogger(logger),
		api.WithTimeout(opts.Timeout),
	}
	if opts.UserAgent != "" {
		clientOpts = append(clientOpts, api.WithUserAgent(opts.UserAgent))
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)
	client := api.New(opts.BaseURL, clientOpts...)

	return &Backend{
		client:  client,
		session: session.New(client, store, opts.Sink, session.WithLogger(logger)),
		tasks:   resource.NewTaskCache(client, opts.Sink, resource.WithLogger(logger)),
		users:   resource.NewUserCache(client, opts.Sink, resource.WithLogger(logger)),
	}
}

func (b *Backend) Initialize(ctx context.Context) bool {
	return b.session.Initialize(ctx)
}

func (b *Backend) Login(ctx context.Context, req model.LoginRequest) bool {
	return b.session.Login(ctx, req)
}

func (b *Backend) Register(ctx context.Context, req model.RegisterRequest) bool {
	return b.session.Register(ctx, req)
}

func (b *Backend) AdoptToken(ctx context.Context, token string) bool {
	return b.session.AdoptToken(ctx, token)
}

func (b *Backend) Logout(ctx context.Context) {
	b.session.Logout(ctx)
}

func (b *Backend) HasSession() bool {
	_, err := b.session.Token()
	return err == nil
}

func (b *Backend) CurrentUser() *model.User {
	return b.session.CurrentUser()
}

// TokenInfo decodes the current access token without verifying it.
func (b *Backend) TokenInfo() (service.TokenInfo, bool) {
	c, ok := b.session.Claims()
	if !ok {
		return service.TokenInfo{}, false
	}
	info := service.TokenInfo{
		UserID: c.UserID,
		Email:  c.Email,
		Role:   c.Role,
	}
	if c.IssuedAt != nil {
		info.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		info.ExpiresAt = c.ExpiresAt.Time
	}
	return info, true
}

func (b *Backend) OnSessionExpired(fn func(prev *model.User)) {
	b.session.Subscribe(func(e session.Event) {
		if e.Kind == session.Invalidated {
			fn(e.Previous)
		}
	})
}

func (b *Backend) OAuthURL() string {
	return b.client.URL(oauthEndpoint)
}

func (b *Backend) LastError() string {
	return b.client.LastError()
}

func (b *Backend) LastStatus() int {
	return b.client.LastStatus()
}

func (b *Backend) ListTasks(ctx context.Context, f model.TaskFilter) (model.Page[model.Task], bool) {
	ok := b.tasks.List(ctx, f)
	return b.tasks.Snapshot(), ok
}

func (b *Backend) GetTask(ctx context.Context, id int) *model.Task {
	return b.tasks.GetOne(ctx, id)
}

func (b *Backend) CreateTask(ctx context.Context, req model.TaskCreateRequest) *model.Task {
	return b.tasks.Create(ctx, req)
}

func (b *Backend) UpdateTask(ctx context.Context, id int, patch model.TaskUpdateRequest) *model.Task {
	return b.tasks.Update(ctx, id, patch)
}

func (b *Backend) DeleteTask(ctx context.Context, id int) bool {
	return b.tasks.Remove(ctx, id)
}

func (b *Backend) CountTasks(ctx context.Context, f model.TaskFilter) (n, status int, ok bool) {
	return b.tasks.Count(ctx, f)
}

func (b *Backend) ListUsers(ctx context.Context, f model.UserFilter) (model.Page[model.User], bool) {
	ok := b.users.List(ctx, f)
	return b.users.Snapshot(), ok
}

func (b *Backend) NextUsers(ctx context.Context) (model.Page[model.User], bool) {
	ok := b.users.Next(ctx)
	return b.users.Snapshot(), ok
}

func (b *Backend) Close(ctx context.Context) error {
	return b.session.Close(ctx)
}

// Package service defines the interface commands use to reach the task backend.
// Commands never import the HTTP, session or cache packages directly.
package service

import (
	"context"

	"taskctl/internal/model"
)

// Service is the command-facing facade over the session and resource caches.
// Operations report failure as nil or false; the reason has already been sent
// to the notification sink, or is available from LastError for auth calls.
type Service interface {
	// Initialize validates the stored session. False means not logged in.
	Initialize(ctx context.Context) bool

	// Login authenticates with email and password.
	Login(ctx context.Context, req model.LoginRequest) bool

	// Register creates an account and logs into it.
	Register(ctx context.Context, req model.RegisterRequest) bool

	// AdoptToken installs a token from the browser login flow.
	AdoptToken(ctx context.Context, token string) bool

	// Logout ends the session locally and tells the backend in the background.
	Logout(ctx context.Context)

	// HasSession reports whether a token is held, whether or not it has been validated.
	HasSession() bool

	// CurrentUser returns the logged-in user, or nil.
	CurrentUser() *model.User

	// TokenInfo describes the current access token.
	TokenInfo() (TokenInfo, bool)

	// OnSessionExpired registers fn to run when the backend rejects the
	// current token. prev is the user that was logged in.
	OnSessionExpired(fn func(prev *model.User))

	// OAuthURL is the backend address that starts the browser login flow.
	OAuthURL() string

	// LastError is the message of the most recent failed request.
	LastError() string

	// LastStatus is the HTTP status of the most recent failed request, or 0.
	LastStatus() int

	ListTasks(ctx context.Context, f model.TaskFilter) (model.Page[model.Task], bool)
	GetTask(ctx context.Context, id int) *model.Task
	CreateTask(ctx context.Context, req model.TaskCreateRequest) *model.Task
	UpdateTask(ctx context.Context, id int, patch model.TaskUpdateRequest) *model.Task
	DeleteTask(ctx context.Context, id int) bool

	// CountTasks returns how many tasks match f's status and search. On
	// failure status is the rejecting HTTP status, 0 without a response.
	// Unlike LastStatus it belongs to this call alone.
	CountTasks(ctx context.Context, f model.TaskFilter) (n, status int, ok bool)

	// ListUsers returns a page of accounts. Admin only.
	ListUsers(ctx context.Context, f model.UserFilter) (model.Page[model.User], bool)

	// NextUsers advances the user listing by one page. False on the last page.
	NextUsers(ctx context.Context) (model.Page[model.User], bool)

	// Close waits for background requests.
	Close(ctx context.Context) error
}

// Package session owns the authenticated identity of the process: the bearer
// token, the current user and their durable copies.
//
// A Session is the only writer of that state. It binds itself to an api.Client
// as its Credentials, so every request carries the current token and every 401
// tears the session down.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"taskctl/internal/api"
	"taskctl/internal/model"
	"taskctl/internal/notify"
	"taskctl/internal/storage"
)

// ErrNoToken is returned by Token when no credential is held.
var ErrNoToken = errors.New("no access token")

const (
	loginEndpoint    = "/auth/login"
	registerEndpoint = "/auth/register"
	logoutEndpoint   = "/auth/logout"
	profileEndpoint  = "/auth/me"
)

// Client is the subset of api.Client a session needs.
type Client interface {
	Get(ctx context.Context, endpoint string, opts ...api.RequestOption) (*api.Outcome, error)
	Post(ctx context.Context, endpoint string, body any, opts ...api.RequestOption) (*api.Outcome, error)
	SetCredentials(c api.Credentials)
}

// Session is safe for concurrent use.
type Session struct {
	client Client
	store  storage.Store
	sink   notify.Sink
	logger *slog.Logger

	mu    sync.RWMutex
	token *oauth2.Token
	user  *model.User
	subs  []func(Event)

	background sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New binds a session to client and restores any durable state from store.
// Restoring never touches the network and never fails: a corrupt user record
// clears both slots.
func New(client Client, store storage.Store, sink notify.Sink, opts ...Option) *Session {
	s := &Session{
		client: client,
		store:  store,
		sink:   sink,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.sink == nil {
		s.sink = notify.Discard
	}
	s.restore()
	client.SetCredentials(s)
	return s
}

func (s *Session) restore() {
	tok, err := s.loadToken()
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("discarding unreadable token", "error", err)
			s.clearDurable()
		}
		return
	}
	user, err := s.loadUser()
	if errors.Is(err, storage.ErrNotFound) {
		// Token without a record: Initialize fetches the profile.
		s.token = tok
		return
	}
	if err != nil {
		s.logger.Warn("discarding corrupt user record", "error", err)
		s.clearDurable()
		return
	}
	s.token = tok
	s.user = user
}

// Initialize validates the session at startup. Without a token the session is
// cleared and false returned. With a token and a readable user record it returns
// true without a request; otherwise it fetches the live profile.
func (s *Session) Initialize(ctx context.Context) bool {
	tok, err := s.loadToken()
	if err != nil {
		s.clear()
		return false
	}

	user, err := s.loadUser()
	if err == nil {
		s.mu.Lock()
		s.token = tok
		s.user = user
		s.mu.Unlock()
		return true
	}
	if !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("stored user record unreadable, fetching profile", "error", err)
	}

	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
	return s.FetchProfile(ctx) != nil
}

// Login authenticates with email and password.
func (s *Session) Login(ctx context.Context, req model.LoginRequest) bool {
	return s.authenticate(ctx, loginEndpoint, req, "Login successful")
}

// Register creates an account and logs into it.
func (s *Session) Register(ctx context.Context, req model.RegisterRequest) bool {
	return s.authenticate(ctx, registerEndpoint, req, "Registration successful")
}

func (s *Session) authenticate(ctx context.Context, endpoint string, body any, success string) bool {
	out, err := s.client.Post(ctx, endpoint, body)
	if err != nil {
		s.logger.Debug("authentication failed", "endpoint", endpoint, "error", err)
		return false
	}
	if out == nil || !out.OK {
		return false
	}
	resp, err := api.Decode[model.AuthResponse](out)
	if err != nil {
		s.logger.Debug("authentication response unreadable", "endpoint", endpoint, "error", err)
		return false
	}
	if resp.AccessToken == "" || resp.User == nil {
		s.logger.Debug("authentication response incomplete", "endpoint", endpoint)
		return false
	}

	// A failed write leaves the previous session in place, on disk too.
	prevToken, prevErr := s.store.Load(storage.KeyAccessToken)
	tok := newToken(resp.AccessToken)
	if err := s.saveToken(tok); err != nil {
		s.logger.Error("persist token", "error", err)
		return false
	}
	if err := s.saveUser(resp.User); err != nil {
		s.logger.Error("persist user", "error", err)
		s.restoreTokenSlot(prevToken, prevErr)
		return false
	}

	s.mu.Lock()
	s.token = tok
	s.user = resp.User
	s.mu.Unlock()

	notify.Send(s.sink, notify.Success, success)
	s.emit(Event{Kind: LoggedIn, User: copyUser(resp.User)})
	return true
}

// AdoptToken installs a token obtained out of band (the OAuth callback) and
// loads the matching profile. On failure the session is left empty.
func (s *Session) AdoptToken(ctx context.Context, accessToken string) bool {
	if accessToken == "" {
		return false
	}
	tok := newToken(accessToken)
	if err := s.saveToken(tok); err != nil {
		s.logger.Error("persist token", "error", err)
		return false
	}
	if err := s.store.Delete(storage.KeyUser); err != nil {
		s.logger.Warn("remove stale user record", "error", err)
	}

	s.mu.Lock()
	s.token = tok
	s.user = nil
	s.mu.Unlock()

	user := s.FetchProfile(ctx)
	if user == nil {
		s.clear()
		return false
	}
	notify.Send(s.sink, notify.Success, "Login successful")
	s.emit(Event{Kind: LoggedIn, User: user})
	return true
}

// Logout clears the session immediately and tells the backend in the
// background. Calling it while logged out is harmless.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	prev := s.user
	s.token = nil
	s.user = nil
	s.mu.Unlock()
	s.clearDurable()

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if _, err := s.client.Post(context.WithoutCancel(ctx), logoutEndpoint, nil); err != nil {
			s.logger.Debug("logout request failed", "error", err)
		}
	}()

	notify.Send(s.sink, notify.Info, "You have been logged out")
	s.emit(Event{Kind: LoggedOut, Previous: prev})
}

// Close waits for background requests started by Logout.
func (s *Session) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FetchProfile loads the current user from the backend and stores it. On
// failure it returns nil and leaves the session as it was, except that a 401
// has already cleared it through Unauthorized.
func (s *Session) FetchProfile(ctx context.Context) *model.User {
	out, err := s.client.Get(ctx, profileEndpoint)
	if err != nil {
		s.logger.Debug("fetch profile failed", "error", err)
		return nil
	}
	if out == nil || !out.OK {
		return nil
	}
	user, err := api.Decode[model.User](out)
	if err != nil {
		s.logger.Debug("profile response unreadable", "error", err)
		return nil
	}

	if err := s.saveUser(&user); err != nil {
		s.logger.Warn("persist user", "error", err)
	}
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return copyUser(&user)
}

// Unauthorized implements api.Credentials. The session is cleared only when the
// rejected token is the one currently held, so a late 401 for an old token
// cannot end a newer login.
func (s *Session) Unauthorized(rejected string) {
	s.mu.Lock()
	if s.token != nil && s.token.AccessToken != rejected {
		s.mu.Unlock()
		s.logger.Debug("ignoring 401 for a superseded token")
		return
	}
	prev := s.user
	s.token = nil
	s.user = nil
	s.mu.Unlock()
	s.clearDurable()

	if prev != nil {
		s.emit(Event{Kind: Invalidated, Previous: prev})
	}
}

// Token implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil || s.token.AccessToken == "" {
		return nil, ErrNoToken
	}
	t := *s.token
	return &t, nil
}

// CurrentUser returns a copy of the logged-in user, or nil.
func (s *Session) CurrentUser() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.user)
}

// IsAuthenticated reports whether a user is loaded.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// IsAdmin reports whether the current user has the admin role.
func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.IsAdmin()
}

func (s *Session) clear() {
	s.mu.Lock()
	s.token = nil
	s.user = nil
	s.mu.Unlock()
	s.clearDurable()
}

func (s *Session) clearDurable() {
	for _, key := range []string{storage.KeyAccessToken, storage.KeyUser} {
		if err := s.store.Delete(key); err != nil {
			s.logger.Warn("clear session storage", "key", key, "error", err)
		}
	}
}

// restoreTokenSlot puts back a token slot read earlier with Load. A slot that
// was missing or unreadable is removed.
func (s *Session) restoreTokenSlot(data []byte, loadErr error) {
	var err error
	if loadErr == nil {
		err = s.store.Save(storage.KeyAccessToken, data)
	} else {
		err = s.store.Delete(storage.KeyAccessToken)
	}
	if err != nil {
		s.logger.Warn("restore token slot", "error", err)
	}
}

func (s *Session) loadToken() (*oauth2.Token, error) {
	data, err := s.store.Load(storage.KeyAccessToken)
	if err != nil {
		return nil, err
	}
	return decodeToken(data)
}

func (s *Session) saveToken(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	return s.store.Save(storage.KeyAccessToken, data)
}

func (s *Session) loadUser() (*model.User, error) {
	data, err := s.store.Load(storage.KeyUser)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Session) saveUser(u *model.User) error {
	data, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return err
	}
	return s.store.Save(storage.KeyUser, data)
}

func copyUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

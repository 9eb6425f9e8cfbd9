package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskctl/internal/api"
	"taskctl/internal/model"
	"taskctl/internal/notify"
	"taskctl/internal/storage"
)

const aliceJSON = `{"id":1,"email":"alice@example.com","name":"Alice","role":"user"}`

// fakeAPI routes "METHOD /path" to canned handlers and records every call.
type fakeAPI struct {
	mu       sync.Mutex
	calls    []string
	auth     []string
	handlers map[string]http.HandlerFunc
}

func newFakeAPI(t *testing.T) (*fakeAPI, *api.Client) {
	t.Helper()
	f := &fakeAPI{handlers: map[string]http.HandlerFunc{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		f.mu.Lock()
		f.calls = append(f.calls, key)
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		h := f.handlers[key]
		f.mu.Unlock()
		_, _ = io.Copy(io.Discard, r.Body)
		if h == nil {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, api.New(srv.URL, api.WithHTTPClient(srv.Client()))
}

func (f *fakeAPI) handle(key string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[key] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func seed(t *testing.T, store storage.Store, token, user string) {
	t.Helper()
	if token != "" {
		require.NoError(t, store.Save(storage.KeyAccessToken, []byte(`{"access_token":"`+token+`","token_type":"Bearer"}`)))
	}
	if user != "" {
		require.NoError(t, store.Save(storage.KeyUser, []byte(user)))
	}
}

func TestNewRestoresWithoutNetwork(t *testing.T) {
	f, client := newFakeAPI(t)
	store := storage.NewMemoryStore()
	seed(t, store, "tok-1", aliceJSON)

	s := New(client, store, nil)

	require.True(t, s.IsAuthenticated())
	assert.Equal(t, "Alice", s.CurrentUser().Name)
	assert.False(t, s.IsAdmin())
	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.AccessToken)
	assert.Empty(t, f.Calls())
}

func TestNewCorruptRecordClearsEverything(t *testing.T) {
	_, client := newFakeAPI(t)
	store := storage.NewMemoryStore()
	seed(t, store, "tok-1", `{not json`)

	s := New(client, store, nil)

	assert.False(t, s.IsAuthenticated())
	_, err := s.Token()
	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, store.Has(storage.KeyAccessToken))
	assert.False(t, store.Has(storage.KeyUser))
}

func TestNewBareTokenRecord(t *testing.T) {
	_, client := newFakeAPI(t)
	store := storage.NewMemoryStore()
	require.NoError(t, store.Save(storage.KeyAccessToken, []byte("raw-token\n")))

	s := New(client, store, nil)

	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "raw-token", tok.AccessToken)
	assert.False(t, s.IsAuthenticated())
}

func TestInitialize(t *testing.T) {
	t.Run("no token", func(t *testing.T) {
		f, client := newFakeAPI(t)
		store := storage.NewMemoryStore()
		seed(t, store, "", aliceJSON)
		s := New(client, store, nil)

		assert.False(t, s.Initialize(context.Background()))
		assert.False(t, s.IsAuthenticated())
		assert.False(t, store.Has(storage.KeyUser))
		assert.Empty(t, f.Calls())
	})

	t.Run("token and record", func(t *testing.T) {
		f, client := newFakeAPI(t)
		store := storage.NewMemoryStore()
		seed(t, store, "tok-1", aliceJSON)
		s := New(client, store, nil)

		assert.True(t, s.Initialize(context.Background()))
		assert.Equal(t, 1, s.CurrentUser().ID)
		assert.Empty(t, f.Calls())
	})

	t.Run("token without record fetches profile", func(t *testing.T) {
		f, client := newFakeAPI(t)
		f.handle("GET /auth/me", http.StatusOK, aliceJSON)
		store := storage.NewMemoryStore()
		seed(t, store, "tok-1", "")
		s := New(client, store, nil)

		assert.True(t, s.Initialize(context.Background()))
		assert.Equal(t, "alice@example.com", s.CurrentUser().Email)
		assert.Equal(t, []string{"GET /auth/me"}, f.Calls())
		assert.Equal(t, "Bearer tok-1", f.auth[0])
		assert.True(t, store.Has(storage.KeyUser))
	})

	t.Run("profile fetch rejected", func(t *testing.T) {
		f, client := newFakeAPI(t)
		f.handle("GET /auth/me", http.StatusUnauthorized, `{"error":"Invalid token"}`)
		store := storage.NewMemoryStore()
		seed(t, store, "tok-1", "")
		s := New(client, store, nil)

		assert.False(t, s.Initialize(context.Background()))
		assert.False(t, s.IsAuthenticated())
		assert.False(t, store.Has(storage.KeyAccessToken))
	})
}

func TestLoginSuccess(t *testing.T) {
	f, client := newFakeAPI(t)
	f.handle("POST /auth/login", http.StatusOK, `{"access_token":"tok-9","user":`+aliceJSON+`}`)
	store := storage.NewMemoryStore()
	rec := &notify.Recorder{}
	s := New(client, store, rec)

	var events []Event
	s.Subscribe(func(e Event) { events = append(events, e) })

	ok := s.Login(context.Background(), model.LoginRequest{Email: "alice@example.com", Password: "pw"})
	require.True(t, ok)
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, []string{"Login successful"}, rec.OfKind(notify.Success))

	tokData, err := store.Load(storage.KeyAccessToken)
	require.NoError(t, err)
	assert.Contains(t, string(tokData), "tok-9")
	userData, err := store.Load(storage.KeyUser)
	require.NoError(t, err)
	var stored model.User
	require.NoError(t, json.Unmarshal(userData, &stored))
	assert.Equal(t, "Alice", stored.Name)

	require.Len(t, events, 1)
	assert.Equal(t, LoggedIn, events[0].Kind)
	assert.Equal(t, 1, events[0].User.ID)
}

func TestLoginIncompleteResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"missing token", http.StatusOK, `{"user":` + aliceJSON + `}`},
		{"missing user", http.StatusOK, `{"access_token":"tok-9"}`},
		{"rejected", http.StatusBadRequest, `{"error":"Invalid credentials"}`},
		{"server error", http.StatusInternalServerError, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, client := newFakeAPI(t)
			f.handle("POST /auth/login", tt.status, tt.body)
			store := storage.NewMemoryStore()
			rec := &notify.Recorder{}
			s := New(client, store, rec)

			assert.False(t, s.Login(context.Background(), model.LoginRequest{Email: "a", Password: "b"}))
			assert.False(t, s.IsAuthenticated())
			assert.False(t, store.Has(storage.KeyAccessToken))
			assert.False(t, store.Has(storage.KeyUser))
			assert.Empty(t, rec.All())
		})
	}
}

// userSlotFailStore refuses to write the user record.
type userSlotFailStore struct {
	*storage.MemoryStore
}

func (s userSlotFailStore) Save(key string, data []byte) error {
	if key == storage.KeyUser {
		return errors.New("disk full")
	}
	return s.MemoryStore.Save(key, data)
}

func TestLoginPersistFailureKeepsPreviousSession(t *testing.T) {
	tests := []struct {
		name      string
		prevToken string
		prevUser  string
	}{
		{"logged in before", "tok-1", aliceJSON},
		{"logged out before", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, client := newFakeAPI(t)
			f.handle("POST /auth/login", http.StatusOK, `{"access_token":"tok-9","user":{"id":2,"email":"bob@example.com","name":"Bob","role":"user"}}`)
			mem := storage.NewMemoryStore()
			seed(t, mem, tt.prevToken, tt.prevUser)
			rec := &notify.Recorder{}
			s := New(client, userSlotFailStore{mem}, rec)
			before := s.CurrentUser()

			assert.False(t, s.Login(context.Background(), model.LoginRequest{Email: "bob@example.com", Password: "pw"}))
			assert.Equal(t, before, s.CurrentUser())
			assert.Empty(t, rec.OfKind(notify.Success))

			if tt.prevToken == "" {
				assert.False(t, mem.Has(storage.KeyAccessToken))
				_, err := s.Token()
				assert.Error(t, err)
				return
			}
			tok, err := s.Token()
			require.NoError(t, err)
			assert.Equal(t, "tok-1", tok.AccessToken)

			// A fresh process sees the same old session.
			again := New(client, mem, nil)
			require.NotNil(t, again.CurrentUser())
			assert.Equal(t, "Alice", again.CurrentUser().Name)
			tok, err = again.Token()
			require.NoError(t, err)
			assert.Equal(t, "tok-1", tok.AccessToken)
		})
	}
}

func TestRegisterSuccess(t *testing.T) {
	f, client := newFakeAPI(t)
	f.handle("POST /auth/register", http.StatusCreated, `{"access_token":"tok-2","user":`+aliceJSON+`}`)
	rec := &notify.Recorder{}
	s := New(client, storage.NewMemoryStore(), rec)

	require.True(t, s.Register(context.Background(), model.RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "pw"}))
	assert.Equal(t, []string{"Registration successful"}, rec.OfKind(notify.Success))
}

func TestLoginRoundTripAcrossSessions(t *testing.T) {
	f, client := newFakeAPI(t)
	f.handle("POST /auth/login", http.StatusOK, `{"access_token":"tok-9","user":`+aliceJSON+`}`)
	store := storage.NewMemoryStore()

	first := New(client, store, nil)
	require.True(t, first.Login(context.Background(), model.LoginRequest{Email: "alice@example.com", Password: "pw"}))

	second := New(client, store, nil)
	assert.Equal(t, first.CurrentUser(), second.CurrentUser())
	tok, err := second.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-9", tok.AccessToken)
}

func TestLogout(t *testing.T) {
	f, client := newFakeAPI(t)
	f.handle("POST /auth/logout", http.StatusOK, `{"message":"Logged out"}`)
	store := storage.NewMemoryStore()
	seed(t, store, "tok-1", aliceJSON)
	rec := &notify.Recorder{}
	s := New(client, store, rec)

	var events []Event
	s.Subscribe(func(e Event) { events = append(events, e) })

	s.Logout(context.Background())
	assert.False(t, s.IsAuthenticated())
	assert.False(t, store.Has(storage.KeyAccessToken))
	assert.False(t, store.Has(storage.KeyUser))

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, []string{"POST /auth/logout"}, f.Calls())
	assert.Equal(t, []string{"You have been logged out"}, rec.OfKind(notify.Info))
	require.Len(t, events, 1)
	assert.Equal(t, LoggedOut, events[0].Kind)
	assert.Equal(t, "Alice", events[0].Previous.Name)
}

func TestLogoutWhenLoggedOutAndBackendDown(t *testing.T) {
	f, client := newFakeAPI(t)
	f.handle("POST /auth/logout", http.StatusInternalServerError, `{"error":"boom"}`)
	rec := &notify.Recorder{}
	s := New(client, storage.NewMemoryStore(), rec)

	s.Logout(context.Background())
	s.Logout(context.Background())
	require.NoError(t, s.Close(context.Background()))

	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, rec.OfKind(notify.Error))
	assert.Len(t, rec.OfKind(notify.Info), 2)
}

func TestUnauthorizedResponseClearsSession(t *testing.T) {
	f, client := newFakeAPI(t)
	f.handle("GET /tasks", http.StatusUnauthorized, `{"error":"Token expired"}`)
	store := storage.NewMemoryStore()
	seed(t, store, "tok-1", aliceJSON)
	s := New(client, store, nil)

	var events []Event
	s.Subscribe(func(e Event) { events = append(events, e) })

	out, err := client.Get(context.Background(), "/tasks")
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.False(t, s.IsAuthenticated())
	assert.False(t, store.Has(storage.KeyAccessToken))
	require.Len(t, events, 1)
	assert.Equal(t, Invalidated, events[0].Kind)
	assert.Equal(t, "Alice", events[0].Previous.Name)

	// A second 401 is idempotent.
	_, err = client.Get(context.Background(), "/tasks")
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated())
	assert.Len(t, events, 1)
}

func TestUnauthorizedForSupersededToken(t *testing.T) {
	_, client := newFakeAPI(t)
	store := storage.NewMemoryStore()
	seed(t, store, "new-token", aliceJSON)
	s := New(client, store, nil)

	s.Unauthorized("old-token")
	assert.True(t, s.IsAuthenticated())
	assert.True(t, store.Has(storage.KeyAccessToken))

	s.Unauthorized("new-token")
	assert.False(t, s.IsAuthenticated())
}

func TestFetchProfileFailureLeavesState(t *testing.T) {
	f, client := newFakeAPI(t)
	f.handle("GET /auth/me", http.StatusInternalServerError, `{"error":"db down"}`)
	store := storage.NewMemoryStore()
	seed(t, store, "tok-1", aliceJSON)
	s := New(client, store, nil)

	assert.Nil(t, s.FetchProfile(context.Background()))
	assert.Equal(t, "Alice", s.CurrentUser().Name)
	assert.True(t, store.Has(storage.KeyUser))
}

func TestFetchProfileReplacesUser(t *testing.T) {
	f, client := newFakeAPI(t)
	f.handle("GET /auth/me", http.StatusOK, `{"id":1,"email":"alice@example.com","name":"Alice B","role":"admin"}`)
	store := storage.NewMemoryStore()
	seed(t, store, "tok-1", aliceJSON)
	s := New(client, store, nil)

	u := s.FetchProfile(context.Background())
	require.NotNil(t, u)
	assert.Equal(t, "Alice B", s.CurrentUser().Name)
	assert.True(t, s.IsAdmin())
}

func TestAdoptToken(t *testing.T) {
	t.Run("profile loads", func(t *testing.T) {
		f, client := newFakeAPI(t)
		f.handle("GET /auth/me", http.StatusOK, aliceJSON)
		store := storage.NewMemoryStore()
		rec := &notify.Recorder{}
		s := New(client, store, rec)

		require.True(t, s.AdoptToken(context.Background(), "oauth-tok"))
		assert.True(t, s.IsAuthenticated())
		assert.Equal(t, "Bearer oauth-tok", f.auth[0])
		assert.True(t, store.Has(storage.KeyUser))
		assert.Equal(t, []string{"Login successful"}, rec.OfKind(notify.Success))
	})

	t.Run("profile rejected", func(t *testing.T) {
		f, client := newFakeAPI(t)
		f.handle("GET /auth/me", http.StatusUnauthorized, `{"error":"Invalid token"}`)
		store := storage.NewMemoryStore()
		s := New(client, store, nil)

		assert.False(t, s.AdoptToken(context.Background(), "bad"))
		assert.False(t, s.IsAuthenticated())
		assert.False(t, store.Has(storage.KeyAccessToken))
	})

	t.Run("empty token", func(t *testing.T) {
		f, client := newFakeAPI(t)
		s := New(client, storage.NewMemoryStore(), nil)
		assert.False(t, s.AdoptToken(context.Background(), ""))
		assert.Empty(t, f.Calls())
	})
}

func TestClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 7,
		Email:  "bob@example.com",
		Role:   model.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}).SignedString([]byte("server-secret"))
	require.NoError(t, err)

	_, client := newFakeAPI(t)
	store := storage.NewMemoryStore()
	require.NoError(t, store.Save(storage.KeyAccessToken, []byte(signed)))
	s := New(client, store, nil)

	c, ok := s.Claims()
	require.True(t, ok)
	assert.Equal(t, 7, c.UserID)
	assert.Equal(t, model.RoleAdmin, c.Role)

	tok, err := s.Token()
	require.NoError(t, err)
	assert.True(t, exp.Equal(tok.Expiry))
}

func TestClaimsWithoutJWT(t *testing.T) {
	_, client := newFakeAPI(t)
	s := New(client, storage.NewMemoryStore(), nil)
	_, ok := s.Claims()
	assert.False(t, ok)

	seedStore := storage.NewMemoryStore()
	seed(t, seedStore, "opaque", aliceJSON)
	s = New(client, seedStore, nil)
	_, ok = s.Claims()
	assert.False(t, ok)
}

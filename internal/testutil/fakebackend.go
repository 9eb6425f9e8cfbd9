// Package testutil provides testing utilities.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"taskctl/internal/model"
)

// APIPrefix is the path every fake endpoint lives under.
const APIPrefix = "/api/v1"

// SigningKey signs the fake's access tokens.
var SigningKey = []byte("fake-backend-secret")

type account struct {
	user     model.User
	password string
}

// FakeBackend is an in-memory implementation of the task REST API served over
// httptest. Admins see every task; users see their own.
type FakeBackend struct {
	srv *httptest.Server

	mu         sync.Mutex
	accounts   []*account
	tokens     map[string]int // token -> user ID
	tasks      []model.Task
	nextUserID int
	nextTaskID int
	requests   []string
	failures   []failure
	latency    time.Duration

	// TokenTTL is the lifetime written into issued tokens.
	TokenTTL time.Duration
}

// failure answers requests matching method, path and, when key is set, one
// query parameter with status.
type failure struct {
	method, path string
	key, value   string
	status       int
}

func (fl failure) matches(r *http.Request, rel string) bool {
	if fl.method != r.Method || fl.path != rel {
		return false
	}
	return fl.key == "" || r.URL.Query().Get(fl.key) == fl.value
}

// NewFakeBackend starts a fake backend that is closed when t finishes.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()
	f := &FakeBackend{
		tokens:     make(map[string]int),
		nextUserID: 1,
		nextTaskID: 1,
		TokenTTL:   24 * time.Hour,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+APIPrefix+"/auth/register", f.register)
	mux.HandleFunc("POST "+APIPrefix+"/auth/login", f.login)
	mux.HandleFunc("POST "+APIPrefix+"/auth/logout", f.logout)
	mux.HandleFunc("GET "+APIPrefix+"/auth/me", f.authed(f.me))
	mux.HandleFunc("GET "+APIPrefix+"/tasks", f.authed(f.listTasks))
	mux.HandleFunc("POST "+APIPrefix+"/tasks", f.authed(f.createTask))
	mux.HandleFunc("GET "+APIPrefix+"/tasks/{id}", f.authed(f.getTask))
	mux.HandleFunc("PUT "+APIPrefix+"/tasks/{id}", f.authed(f.updateTask))
	mux.HandleFunc("DELETE "+APIPrefix+"/tasks/{id}", f.authed(f.deleteTask))
	mux.HandleFunc("GET "+APIPrefix+"/admin/users", f.authed(f.listUsers))

	f.srv = httptest.NewServer(f.record(mux))
	t.Cleanup(f.srv.Close)
	return f
}

// URL returns the API base URL.
func (f *FakeBackend) URL() string {
	return f.srv.URL + APIPrefix
}

// Client returns an HTTP client for the fake's server.
func (f *FakeBackend) Client() *http.Client {
	return f.srv.Client()
}

// AddUser creates an account and returns it.
func (f *FakeBackend) AddUser(name, email, password string, role model.Role) model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addUserLocked(name, email, password, role)
}

func (f *FakeBackend) addUserLocked(name, email, password string, role model.Role) model.User {
	now := time.Now().UTC().Truncate(time.Second)
	u := model.User{
		ID:        f.nextUserID,
		CreatedAt: &now,
		UpdatedAt: &now,
		Email:     email,
		Name:      name,
		Role:      role,
	}
	f.nextUserID++
	f.accounts = append(f.accounts, &account{user: u, password: password})
	return u
}

// IssueToken returns a fresh access token for the user.
func (f *FakeBackend) IssueToken(userID int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issueLocked(userID)
}

func (f *FakeBackend) issueLocked(userID int) string {
	acc := f.accountLocked(userID)
	if acc == nil {
		panic(fmt.Sprintf("testutil: no user %d", userID))
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": acc.user.ID,
		"email":   acc.user.Email,
		"role":    string(acc.user.Role),
		"iat":     now.Unix(),
		"exp":     now.Add(f.TokenTTL).Unix(),
		"jti":     uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(SigningKey)
	if err != nil {
		panic(fmt.Sprintf("testutil: sign token: %v", err))
	}
	f.tokens[signed] = acc.user.ID
	return signed
}

// RevokeAll invalidates every issued token.
func (f *FakeBackend) RevokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = make(map[string]int)
}

// AddTask stores a task for the user and returns it.
func (f *FakeBackend) AddTask(userID int, title string, status model.TaskStatus) model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addTaskLocked(userID, title, nil, status)
}

func (f *FakeBackend) addTaskLocked(userID int, title string, desc *string, status model.TaskStatus) model.Task {
	if status == "" {
		status = model.StatusPending
	}
	now := time.Now().UTC().Truncate(time.Second)
	task := model.Task{
		ID:          f.nextTaskID,
		CreatedAt:   &now,
		UpdatedAt:   &now,
		UserID:      userID,
		Title:       title,
		Description: desc,
		Status:      status,
	}
	f.nextTaskID++
	f.tasks = append(f.tasks, task)
	return task
}

// Task returns a stored task by ID.
func (f *FakeBackend) Task(id int) (model.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.taskIndexLocked(id); i >= 0 {
		return f.tasks[i], true
	}
	return model.Task{}, false
}

// TaskCount returns the number of stored tasks.
func (f *FakeBackend) TaskCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

// Fail makes every request to "METHOD path" answer with status. path is
// relative to the API prefix, e.g. Fail("GET", "/tasks", 500).
func (f *FakeBackend) Fail(method, path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, failure{method: method, path: path, status: status})
}

// FailQuery is Fail restricted to requests whose query parameter key equals
// value, e.g. FailQuery("GET", "/tasks", "status", "pending", 403).
func (f *FakeBackend) FailQuery(method, path, key, value string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, failure{method: method, path: path, key: key, value: value, status: status})
}

// ClearFailures removes every injected failure.
func (f *FakeBackend) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = nil
}

// SetLatency delays every request that is not an injected failure by d.
func (f *FakeBackend) SetLatency(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latency = d
}

// Requests returns "METHOD /path?query" for every request received, relative
// to the API prefix.
func (f *FakeBackend) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	copy(out, f.requests)
	return out
}

// ResetRequests forgets recorded requests.
func (f *FakeBackend) ResetRequests() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = nil
}

func (f *FakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(r.URL.Path, APIPrefix)
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+strings.TrimPrefix(r.URL.RequestURI(), APIPrefix))
		status := 0
		for i := len(f.failures) - 1; i >= 0; i-- {
			if f.failures[i].matches(r, rel) {
				status = f.failures[i].status
				break
			}
		}
		latency := f.latency
		f.mu.Unlock()
		if status != 0 {
			writeError(w, status, "injected failure")
			return
		}
		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, user model.User)

func (f *FakeBackend) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid token format")
			return
		}
		f.mu.Lock()
		id, ok := f.tokens[token]
		var acc *account
		if ok {
			acc = f.accountLocked(id)
		}
		f.mu.Unlock()
		if acc == nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		h(w, r, acc.user)
	}
}

func (f *FakeBackend) register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	var details []map[string]string
	if strings.TrimSpace(req.Name) == "" {
		details = append(details, fieldError("name", "name is required"))
	}
	if !strings.Contains(req.Email, "@") {
		details = append(details, fieldError("email", "email must be a valid email address"))
	}
	if len(req.Password) < 6 {
		details = append(details, fieldError("password", "password must be at least 6 characters"))
	}
	if len(details) > 0 {
		writeValidation(w, details)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accountByEmailLocked(req.Email) != nil {
		writeError(w, http.StatusConflict, "Email already exists")
		return
	}
	u := f.addUserLocked(req.Name, req.Email, req.Password, model.RoleUser)
	writeJSON(w, http.StatusCreated, model.AuthResponse{AccessToken: f.issueLocked(u.ID), User: &u})
}

func (f *FakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	acc := f.accountByEmailLocked(req.Email)
	if acc == nil || acc.password != req.Password {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	u := acc.user
	writeJSON(w, http.StatusOK, model.AuthResponse{AccessToken: f.issueLocked(u.ID), User: &u})
}

func (f *FakeBackend) logout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (f *FakeBackend) me(w http.ResponseWriter, _ *http.Request, user model.User) {
	writeJSON(w, http.StatusOK, user)
}

func (f *FakeBackend) listTasks(w http.ResponseWriter, r *http.Request, user model.User) {
	page, limit := pageAndLimit(r)
	status := r.URL.Query().Get("status")
	search := strings.ToLower(r.URL.Query().Get("search"))

	f.mu.Lock()
	var matched []model.Task
	for _, t := range f.tasks {
		if !user.IsAdmin() && t.UserID != user.ID {
			continue
		}
		if status != "" && string(t.Status) != status {
			continue
		}
		if search != "" && !matchesSearch(t, search) {
			continue
		}
		matched = append(matched, t)
	}
	f.mu.Unlock()

	// Newest first
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": window(matched, page, limit),
		"total": len(matched),
		"page":  page,
		"limit": limit,
	})
}

func (f *FakeBackend) getTask(w http.ResponseWriter, r *http.Request, user model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.ownedTaskLocked(w, r, user)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, f.tasks[i])
}

func (f *FakeBackend) createTask(w http.ResponseWriter, r *http.Request, user model.User) {
	var req model.TaskCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	var details []map[string]string
	if strings.TrimSpace(req.Title) == "" {
		details = append(details, fieldError("title", "title is required"))
	}
	if _, err := model.ParseStatus(string(req.Status)); err != nil {
		details = append(details, fieldError("status", "status must be one of: pending in_progress completed"))
	}
	if len(details) > 0 {
		writeValidation(w, details)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusCreated, f.addTaskLocked(user.ID, req.Title, req.Description, req.Status))
}

func (f *FakeBackend) updateTask(w http.ResponseWriter, r *http.Request, user model.User) {
	var req model.TaskUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if req.Status != nil {
		if _, err := model.ParseStatus(string(*req.Status)); err != nil || *req.Status == "" {
			writeValidation(w, []map[string]string{fieldError("status", "status must be one of: pending in_progress completed")})
			return
		}
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		writeValidation(w, []map[string]string{fieldError("title", "title is required")})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.ownedTaskLocked(w, r, user)
	if !ok {
		return
	}
	t := &f.tasks[i]
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = req.Description
	}
	if req.Status != nil {
		t.Status = *req.Status
	}
	now := time.Now().UTC().Truncate(time.Second)
	t.UpdatedAt = &now
	writeJSON(w, http.StatusOK, *t)
}

func (f *FakeBackend) deleteTask(w http.ResponseWriter, r *http.Request, user model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.ownedTaskLocked(w, r, user)
	if !ok {
		return
	}
	f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}

func (f *FakeBackend) listUsers(w http.ResponseWriter, r *http.Request, user model.User) {
	if !user.IsAdmin() {
		writeError(w, http.StatusForbidden, "Access denied")
		return
	}
	page, limit := pageAndLimit(r)

	f.mu.Lock()
	users := make([]model.User, 0, len(f.accounts))
	for _, acc := range f.accounts {
		users = append(users, acc.user)
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"users": window(users, page, limit),
		"total": len(users),
		"page":  page,
		"limit": limit,
	})
}

// ownedTaskLocked resolves {id} and writes the error response itself when the
// task is missing or belongs to someone else.
func (f *FakeBackend) ownedTaskLocked(w http.ResponseWriter, r *http.Request, user model.User) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid task ID")
		return 0, false
	}
	i := f.taskIndexLocked(id)
	if i < 0 {
		writeError(w, http.StatusNotFound, "Task not found")
		return 0, false
	}
	if !user.IsAdmin() && f.tasks[i].UserID != user.ID {
		writeError(w, http.StatusForbidden, "Access denied")
		return 0, false
	}
	return i, true
}

func (f *FakeBackend) taskIndexLocked(id int) int {
	for i, t := range f.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (f *FakeBackend) accountLocked(id int) *account {
	for _, acc := range f.accounts {
		if acc.user.ID == id {
			return acc
		}
	}
	return nil
}

func (f *FakeBackend) accountByEmailLocked(email string) *account {
	for _, acc := range f.accounts {
		if strings.EqualFold(acc.user.Email, email) {
			return acc
		}
	}
	return nil
}

func matchesSearch(t model.Task, search string) bool {
	if strings.Contains(strings.ToLower(t.Title), search) {
		return true
	}
	return t.Description != nil && strings.Contains(strings.ToLower(*t.Description), search)
}

func pageAndLimit(r *http.Request) (int, int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

func window[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := min(start+limit, len(items))
	return items[start:end]
}

func fieldError(field, msg string) map[string]string {
	return map[string]string{"field": field, "message": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": http.StatusText(status), "message": msg})
}

func writeValidation(w http.ResponseWriter, details []map[string]string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Validation failed", "details": details})
}

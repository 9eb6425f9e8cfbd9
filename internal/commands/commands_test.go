package commands_test

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"taskctl/internal/backend/rest"
	"taskctl/internal/commands"
	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/model"
	"taskctl/internal/notify"
	"taskctl/internal/service"
	"taskctl/internal/storage"
	"taskctl/internal/testutil"
)

// env runs commands against a fake backend. Notifications are printed to the
// same stderr buffer the command writes to.
type env struct {
	t       *testing.T
	backend *testutil.FakeBackend
	svc     *rest.Backend
	cfg     *config.Config
	out     bytes.Buffer
	errOut  bytes.Buffer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{t: t, backend: testutil.NewFakeBackend(t)}
	e.cfg = &config.Config{
		Dir:   t.TempDir(),
		OAuth: config.OAuthConfig{CallbackTimeout: 5 * time.Second},
	}
	e.svc = rest.New(rest.Options{
		BaseURL: e.backend.URL(),
		Store:   storage.NewMemoryStore(),
		Sink:    notify.NewPrinter(&e.errOut, notify.ColorNever, false),
	})
	t.Cleanup(func() { _ = e.svc.Close(context.Background()) })
	return e
}

// loginAs creates an account and logs into it.
func (e *env) loginAs(role model.Role) model.User {
	e.t.Helper()
	u := e.backend.AddUser("Ada", "ada@example.com", "secret1", role)
	if !e.svc.Login(context.Background(), model.LoginRequest{Email: u.Email, Password: "secret1"}) {
		e.t.Fatalf("login failed: %s", e.svc.LastError())
	}
	return u
}

// run parses args with the command's flags and runs it.
func (e *env) run(cmd commands.Command, args ...string) (stdout, stderr string, code int) {
	e.t.Helper()
	return e.runWith(cmd, e.svc, args...)
}

func (e *env) runWith(cmd commands.Command, svc service.Service, args ...string) (stdout, stderr string, code int) {
	e.t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		e.t.Fatalf("parse flags: %v", err)
	}

	e.out.Reset()
	e.errOut.Reset()
	code = cmd.Run(context.Background(), e.cfg, svc, fs.Args(), &e.out, &e.errOut)
	return e.out.String(), e.errOut.String(), code
}

var errGoogleRevoked = errors.New("google credentials expired or revoked")

func countRequests(reqs []string, prefix string) int {
	n := 0
	for _, r := range reqs {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	e := newEnv(t)
	stdout, stderr, code := e.runWith(&commands.VersionCmd{}, nil)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "taskctl 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

func TestVersionCommand_Verbose(t *testing.T) {
	e := newEnv(t)
	e.cfg.APIBaseURL = "http://api.example.com/api/v1"

	stdout, _, code := e.runWith(&commands.VersionCmd{}, nil, "--verbose")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	for _, want := range []string{"taskctl 0.1.0\n", "go:     go", "api:    http://api.example.com/api/v1\n", "config: " + e.cfg.Dir + "\n"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output, got:\n%s", want, stdout)
		}
	}
}

func TestLogoutCommand_UnexpectedArgument(t *testing.T) {
	e := newEnv(t)

	_, stderr, code := e.run(&commands.LogoutCmd{}, "now")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: unexpected argument: now\n" {
		t.Errorf("expected argument error, got %q", stderr)
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	e := newEnv(t)
	stdout, stderr, code := e.runWith(&commands.HelpCmd{}, nil)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	testutil.GoldenString(t, "help", stdout)
}

func TestHelpCommand_ForCommand(t *testing.T) {
	e := newEnv(t)
	stdout, _, code := e.runWith(&commands.HelpCmd{}, nil, "ls")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if !strings.Contains(stdout, "taskctl list [--page <n>]") {
		t.Errorf("expected list usage, got %q", stdout)
	}
}

func TestHelpCommand_UnknownCommand(t *testing.T) {
	e := newEnv(t)
	_, stderr, code := e.runWith(&commands.HelpCmd{}, nil, "bogus")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: unknown command: bogus\n" {
		t.Errorf("expected unknown command error, got %q", stderr)
	}
}

// Tests for list command
func TestListCommand(t *testing.T) {
	e := newEnv(t)
	u := e.loginAs(model.RoleUser)
	e.backend.AddTask(u.ID, "Write report", model.StatusPending)
	e.backend.AddTask(u.ID, "Buy milk", model.StatusCompleted)

	stdout, stderr, code := e.run(&commands.ListCmd{})

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	for _, want := range []string{"Write report", "Buy milk", "Completed", "page 1 of 1 (2 tasks)"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected stdout to contain %q, got:\n%s", want, stdout)
		}
	}
	// Newest first
	if strings.Index(stdout, "Buy milk") > strings.Index(stdout, "Write report") {
		t.Errorf("expected newest task first, got:\n%s", stdout)
	}
}

func TestListCommand_Empty(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)

	stdout, _, code := e.run(&commands.ListCmd{})

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "no tasks found\n" {
		t.Errorf("expected %q, got %q", "no tasks found\n", stdout)
	}
}

func TestListCommand_Filters(t *testing.T) {
	e := newEnv(t)
	u := e.loginAs(model.RoleUser)
	for i := 0; i < 3; i++ {
		e.backend.AddTask(u.ID, "done task", model.StatusCompleted)
	}
	e.backend.ResetRequests()

	stdout, _, code := e.run(&commands.ListCmd{}, "--page", "2", "--limit", "1", "--status", "completed", "--search", "done")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	reqs := e.backend.Requests()
	want := "GET /tasks?page=2&limit=1&status=completed&search=done"
	if len(reqs) != 1 || reqs[0] != want {
		t.Errorf("expected [%s], got %v", want, reqs)
	}
	if !strings.Contains(stdout, "page 2 of 3 (3 tasks)") {
		t.Errorf("expected pager line, got:\n%s", stdout)
	}
}

func TestListCommand_InvalidStatus(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)
	e.backend.ResetRequests()

	_, stderr, code := e.run(&commands.ListCmd{}, "--status", "later")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.HasPrefix(stderr, "error: invalid status: later") {
		t.Errorf("expected invalid status error, got %q", stderr)
	}
	if len(e.backend.Requests()) != 0 {
		t.Errorf("expected no requests, got %v", e.backend.Requests())
	}
}

func TestListCommand_All(t *testing.T) {
	e := newEnv(t)
	u := e.loginAs(model.RoleUser)
	for _, title := range []string{"t1", "t2", "t3", "t4", "t5"} {
		e.backend.AddTask(u.ID, title, model.StatusPending)
	}
	e.backend.ResetRequests()

	stdout, _, code := e.run(&commands.ListCmd{}, "--limit", "2", "--status", "pending", "--all")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	for _, want := range []string{"t1", "t2", "t3", "t4", "t5"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected stdout to contain %q, got:\n%s", want, stdout)
		}
	}
	reqs := e.backend.Requests()
	if n := countRequests(reqs, "GET /tasks?"); n != 3 {
		t.Errorf("expected 3 list requests, got %d: %v", n, reqs)
	}
	if reqs[2] != "GET /tasks?page=3&limit=2&status=pending" {
		t.Errorf("expected filter kept on later pages, got %q", reqs[2])
	}
}

func TestListCommand_BackendError(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)
	e.backend.Fail("GET", "/tasks", 500)

	_, stderr, code := e.run(&commands.ListCmd{})

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if stderr != "[ERROR] injected failure\n" {
		t.Errorf("expected notification, got %q", stderr)
	}
}

func TestListCommand_SessionRevoked(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)
	e.backend.RevokeAll()

	_, _, code := e.run(&commands.ListCmd{})

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if e.svc.CurrentUser() != nil || e.svc.HasSession() {
		t.Error("expected session to be cleared")
	}
}

// Tests for show command
func TestShowCommand(t *testing.T) {
	e := newEnv(t)
	u := e.loginAs(model.RoleUser)
	task := e.backend.AddTask(u.ID, "Plan trip", model.StatusInProgress)

	stdout, _, code := e.run(&commands.ShowCmd{}, "#1")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if task.ID != 1 {
		t.Fatalf("expected task 1, got %d", task.ID)
	}
	for _, want := range []string{"Title:       Plan trip", "Status:      In Progress"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected stdout to contain %q, got:\n%s", want, stdout)
		}
	}
}

func TestShowCommand_NotFound(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)

	stdout, stderr, code := e.run(&commands.ShowCmd{}, "99")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "[ERROR] Task not found\n" {
		t.Errorf("expected not found notification, got %q", stderr)
	}
}

func TestShowCommand_InvalidID(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)

	_, stderr, code := e.run(&commands.ShowCmd{}, "abc")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: invalid task id: abc\n" {
		t.Errorf("expected invalid id error, got %q", stderr)
	}
}

// Tests for add command
func TestAddCommand(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)
	e.backend.ResetRequests()

	stdout, stderr, code := e.run(&commands.AddCmd{}, "--description", "2 litres", "Buy", "milk")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "1\n" {
		t.Errorf("expected new id, got %q", stdout)
	}
	if stderr != "[OK] Task created\n" {
		t.Errorf("expected success notification, got %q", stderr)
	}

	task, ok := e.backend.Task(1)
	if !ok {
		t.Fatal("expected task to be created")
	}
	if task.Title != "Buy milk" {
		t.Errorf("expected title %q, got %q", "Buy milk", task.Title)
	}
	if task.Description == nil || *task.Description != "2 litres" {
		t.Errorf("expected description, got %v", task.Description)
	}
	if task.Status != model.StatusPending {
		t.Errorf("expected pending, got %q", task.Status)
	}
	if n := countRequests(e.backend.Requests(), "GET /tasks"); n != 1 {
		t.Errorf("expected one reload after create, got %d", n)
	}
}

func TestAddCommand_TitleRequired(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)

	_, stderr, code := e.run(&commands.AddCmd{}, " ")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: title required\n" {
		t.Errorf("expected title required error, got %q", stderr)
	}
	if e.backend.TaskCount() != 0 {
		t.Error("expected no task to be created")
	}
}

// Tests for update command
func TestUpdateCommand(t *testing.T) {
	e := newEnv(t)
	u := e.loginAs(model.RoleUser)
	e.backend.AddTask(u.ID, "Draft", model.StatusPending)

	stdout, stderr, code := e.run(&commands.UpdateCmd{}, "--title", "Final", "--status", "in_progress", "1")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "ok\n" {
		t.Errorf("expected ok, got %q", stdout)
	}
	if stderr != "[OK] Task updated\n" {
		t.Errorf("expected success notification, got %q", stderr)
	}
	task, _ := e.backend.Task(1)
	if task.Title != "Final" || task.Status != model.StatusInProgress {
		t.Errorf("expected updated task, got %+v", task)
	}
}

func TestUpdateCommand_ClearDescription(t *testing.T) {
	e := newEnv(t)
	u := e.loginAs(model.RoleUser)
	e.backend.AddTask(u.ID, "Draft", model.StatusPending)

	if _, _, code := e.run(&commands.UpdateCmd{}, "--description", "", "1"); code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	task, _ := e.backend.Task(1)
	if task.Description == nil || *task.Description != "" {
		t.Errorf("expected empty description, got %v", task.Description)
	}
}

func TestUpdateCommand_NothingToUpdate(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)

	_, stderr, code := e.run(&commands.UpdateCmd{}, "1")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.HasPrefix(stderr, "error: nothing to update") {
		t.Errorf("expected nothing to update error, got %q", stderr)
	}
}

// Tests for done command
func TestDoneCommand(t *testing.T) {
	e := newEnv(t)
	u := e.loginAs(model.RoleUser)
	e.backend.AddTask(u.ID, "a", model.StatusPending)
	e.backend.AddTask(u.ID, "b", model.StatusInProgress)

	stdout, _, code := e.run(&commands.DoneCmd{}, "1,2")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "ok\n" {
		t.Errorf("expected ok, got %q", stdout)
	}
	for _, id := range []int{1, 2} {
		task, _ := e.backend.Task(id)
		if task.Status != model.StatusCompleted {
			t.Errorf("task %d: expected completed, got %q", id, task.Status)
		}
	}
}

func TestDoneCommand_PartialFailure(t *testing.T) {
	e := newEnv(t)
	u := e.loginAs(model.RoleUser)
	e.backend.AddTask(u.ID, "a", model.StatusPending)

	stdout, stderr, code := e.run(&commands.DoneCmd{}, "99", "1")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if !strings.Contains(stderr, "[ERROR] Task not found") {
		t.Errorf("expected not found notification, got %q", stderr)
	}
	task, _ := e.backend.Task(1)
	if task.Status != model.StatusCompleted {
		t.Errorf("expected remaining id to be completed, got %q", task.Status)
	}
}

func TestDoneCommand_IDRequired(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)

	_, stderr, code := e.run(&commands.DoneCmd{})

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: task id required\n" {
		t.Errorf("expected id required error, got %q", stderr)
	}
}

// Tests for rm command
func TestRmCommand(t *testing.T) {
	e := newEnv(t)
	u := e.loginAs(model.RoleUser)
	e.backend.AddTask(u.ID, "a", model.StatusPending)
	e.backend.AddTask(u.ID, "b", model.StatusPending)

	stdout, stderr, code := e.run(&commands.RmCmd{}, "2")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "ok\n" {
		t.Errorf("expected ok, got %q", stdout)
	}
	if stderr != "[OK] Task deleted\n" {
		t.Errorf("expected success notification, got %q", stderr)
	}
	if _, ok := e.backend.Task(2); ok {
		t.Error("expected task 2 to be deleted")
	}
	if e.backend.TaskCount() != 1 {
		t.Errorf("expected 1 task left, got %d", e.backend.TaskCount())
	}
}

func TestRmCommand_OtherUsersTask(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)
	other := e.backend.AddUser("Bob", "bob@example.com", "secret2", model.RoleUser)
	e.backend.AddTask(other.ID, "private", model.StatusPending)

	_, stderr, code := e.run(&commands.RmCmd{}, "1")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "[ERROR] Access denied\n" {
		t.Errorf("expected access denied, got %q", stderr)
	}
	if e.backend.TaskCount() != 1 {
		t.Error("expected task to survive")
	}
}

// Tests for users command
func TestUsersCommand_Admin(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleAdmin)
	e.backend.AddUser("Bob", "bob@example.com", "secret2", model.RoleUser)

	stdout, _, code := e.run(&commands.UsersCmd{})

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	for _, want := range []string{"ada@example.com", "bob@example.com", "admin", "page 1 of 1 (2 users)"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected stdout to contain %q, got:\n%s", want, stdout)
		}
	}
}

func TestUsersCommand_All(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleAdmin)
	e.backend.AddUser("Bob", "bob@example.com", "secret2", model.RoleUser)
	e.backend.AddUser("Cy", "cy@example.com", "secret3", model.RoleUser)
	e.backend.ResetRequests()

	stdout, _, code := e.run(&commands.UsersCmd{}, "--limit", "1", "--all")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	for _, want := range []string{"ada@example.com", "bob@example.com", "cy@example.com"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected stdout to contain %q, got:\n%s", want, stdout)
		}
	}
	if n := countRequests(e.backend.Requests(), "GET /admin/users"); n != 3 {
		t.Errorf("expected 3 user requests, got %d", n)
	}
}

func TestUsersCommand_Forbidden(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)

	_, stderr, code := e.run(&commands.UsersCmd{})

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "[ERROR] Access denied\n" {
		t.Errorf("expected access denied, got %q", stderr)
	}
}

// Tests for stats command
func TestStatsCommand(t *testing.T) {
	e := newEnv(t)
	u := e.loginAs(model.RoleUser)
	e.backend.AddTask(u.ID, "a", model.StatusPending)
	e.backend.AddTask(u.ID, "b", model.StatusPending)
	e.backend.AddTask(u.ID, "c", model.StatusCompleted)

	stdout, _, code := e.run(&commands.StatsCmd{})

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	want := "Pending:     2\nIn Progress: 0\nCompleted:   1\nTotal:       3\n"
	if stdout != want {
		t.Errorf("expected %q, got %q", want, stdout)
	}
}

func TestStatsCommand_Failure(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)
	e.backend.Fail("GET", "/tasks", 503)

	stdout, _, code := e.run(&commands.StatsCmd{})

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
}

func TestStatsCommand_OneStatusForbidden(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)
	e.backend.FailQuery("GET", "/tasks", "status", "pending", 403)
	e.backend.SetLatency(50 * time.Millisecond)

	stdout, stderr, code := e.run(&commands.StatsCmd{})

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "[ERROR] injected failure\n" {
		t.Errorf("expected exactly one error notification, got %q", stderr)
	}
	if n := countRequests(e.backend.Requests(), "GET /tasks?"); n != len(model.Statuses) {
		t.Errorf("expected %d count requests, got %d", len(model.Statuses), n)
	}
}

// Tests for whoami command
func TestWhoamiCommand(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleAdmin)

	stdout, _, code := e.run(&commands.WhoamiCmd{})

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	for _, want := range []string{"Name:    Ada", "Email:   ada@example.com", "Role:    admin", "Login:   password", "Expires:"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected stdout to contain %q, got:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "(expired)") {
		t.Errorf("expected live token, got:\n%s", stdout)
	}
}

func TestWhoamiCommand_NotLoggedIn(t *testing.T) {
	e := newEnv(t)

	_, stderr, code := e.run(&commands.WhoamiCmd{})

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: not logged in (run: taskctl login)\n" {
		t.Errorf("expected not logged in error, got %q", stderr)
	}
}

// Tests for import-google command
func TestImportGoogleCommand(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)
	due := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	src := testutil.NewFakeSource()
	src.AddTask(testutil.DefaultListID, service.ExternalTask{ID: "g1", Title: "Call mom", Notes: "Sunday", Due: &due})
	src.AddTask(testutil.DefaultListID, service.ExternalTask{ID: "g2", Title: "Pay rent"})
	src.AddTask(testutil.DefaultListID, service.ExternalTask{ID: "g3", Title: "old", Status: "completed"})

	cmd := &commands.ImportGoogleCmd{}
	cmd.SetSource(src)
	stdout, _, code := e.run(cmd)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "imported 2 tasks from My Tasks\n" {
		t.Errorf("expected import summary, got %q", stdout)
	}
	if e.backend.TaskCount() != 2 {
		t.Fatalf("expected 2 tasks, got %d", e.backend.TaskCount())
	}
	task, _ := e.backend.Task(1)
	if task.Title != "Call mom" {
		t.Errorf("expected first task %q, got %q", "Call mom", task.Title)
	}
	if task.Description == nil || *task.Description != "Sunday\n\nDue: 2026-05-01" {
		t.Errorf("expected notes and due date in description, got %v", task.Description)
	}
	if len(src.Completed()) != 0 {
		t.Errorf("expected source untouched, got %v", src.Completed())
	}
}

func TestImportGoogleCommand_MarkDoneAndStatus(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)
	src := testutil.NewFakeSource()
	src.AddList("work", "Work")
	src.AddTask("work", service.ExternalTask{ID: "w1", Title: "Ship it"})
	src.AddTask("work", service.ExternalTask{ID: "w2", Title: "  "})

	cmd := &commands.ImportGoogleCmd{}
	cmd.SetSource(src)
	stdout, _, code := e.run(cmd, "--list", "work", "--status", "in_progress", "--mark-done")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	want := "imported 1 task from Work\nskipped 1 untitled task\n"
	if stdout != want {
		t.Errorf("expected %q, got %q", want, stdout)
	}
	task, _ := e.backend.Task(1)
	if task.Status != model.StatusInProgress {
		t.Errorf("expected in_progress, got %q", task.Status)
	}
	if got := src.Completed(); len(got) != 1 || got[0] != "work/w1" {
		t.Errorf("expected [work/w1] completed, got %v", got)
	}
}

func TestImportGoogleCommand_DryRun(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)
	src := testutil.NewFakeSource()
	src.AddTask(testutil.DefaultListID, service.ExternalTask{ID: "g1", Title: "Call mom"})

	cmd := &commands.ImportGoogleCmd{}
	cmd.SetSource(src)
	stdout, _, code := e.run(cmd, "--dry-run")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	want := "would import: Call mom\nwould import 1 task from My Tasks\n"
	if stdout != want {
		t.Errorf("expected %q, got %q", want, stdout)
	}
	if e.backend.TaskCount() != 0 {
		t.Error("expected no tasks to be created")
	}
}

func TestImportGoogleCommand_ListNotFound(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)

	cmd := &commands.ImportGoogleCmd{}
	cmd.SetSource(testutil.NewFakeSource())
	_, stderr, code := e.run(cmd, "--list", "Nope")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: list not found: Nope\n" {
		t.Errorf("expected list not found error, got %q", stderr)
	}
}

func TestImportGoogleCommand_CreateFails(t *testing.T) {
	e := newEnv(t)
	e.loginAs(model.RoleUser)
	e.backend.Fail("POST", "/tasks", 500)
	src := testutil.NewFakeSource()
	src.AddTask(testutil.DefaultListID, service.ExternalTask{ID: "g1", Title: "Call mom"})

	cmd := &commands.ImportGoogleCmd{}
	cmd.SetSource(src)
	_, stderr, code := e.run(cmd, "--mark-done")

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if !strings.Contains(stderr, "error: imported 0 of 1 tasks before failing") {
		t.Errorf("expected failure summary, got %q", stderr)
	}
	if len(src.Completed()) != 0 {
		t.Error("expected nothing marked done")
	}
}

// Tests for google-lists command
func TestGoogleListsCommand(t *testing.T) {
	e := newEnv(t)
	src := testutil.NewFakeSource()
	src.AddList("shopping", "Shopping")
	src.AddList("work", "Work")

	cmd := &commands.GoogleListsCmd{}
	cmd.SetSource(src)
	stdout, stderr, code := e.runWith(cmd, nil)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	expected := "My Tasks [default]\nShopping\nWork\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestGoogleListsCommand_SourceError(t *testing.T) {
	e := newEnv(t)
	src := testutil.NewFakeSource()
	src.ListListsErr = errGoogleRevoked

	cmd := &commands.GoogleListsCmd{}
	cmd.SetSource(src)
	_, stderr, code := e.runWith(cmd, nil)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if !strings.HasPrefix(stderr, "error: auth error:") {
		t.Errorf("expected auth error, got %q", stderr)
	}
}

func TestGoogleListsCommand_MissingGoogleToken(t *testing.T) {
	e := newEnv(t)
	if err := os.WriteFile(e.cfg.OAuthClientPath(), []byte("{}"), 0600); err != nil {
		t.Fatalf("write client file: %v", err)
	}

	_, stderr, code := e.runWith(&commands.GoogleListsCmd{}, nil)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	want := "error: auth error: missing credentials: no Google token at " + e.cfg.GoogleTokenPath() + "\n"
	if stderr != want {
		t.Errorf("expected %q, got %q", want, stderr)
	}
}

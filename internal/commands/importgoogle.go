package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskctl/internal/backend/googletasks"
	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/model"
	"taskctl/internal/service"
)

// dueLayout formats Google due dates copied into task descriptions.
const dueLayout = "2006-01-02"

// maxImportPages bounds the page walk against a source that never runs dry.
const maxImportPages = 1000

func init() {
	Register(&ImportGoogleCmd{})
}

// googleFlags are the credential flags shared by the Google commands.
type googleFlags struct {
	credentials string
	token       string
	source      service.ImportSource
}

func (g *googleFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&g.credentials, "credentials", "", "")
	fs.StringVar(&g.token, "token", "", "")
}

// open returns the injected source, or a Google Tasks client using the flag
// paths, falling back to the files in the config directory. Without a client
// file anywhere the Google application default credentials are used.
func (g *googleFlags) open(ctx context.Context, cfg *config.Config) (service.ImportSource, error) {
	if g.source != nil {
		return g.source, nil
	}
	creds := googletasks.Credentials{
		ClientPath: g.credentials,
		TokenPath:  g.token,
	}
	if creds.ClientPath == "" && cfg.HasOAuthClient() {
		creds.ClientPath = cfg.OAuthClientPath()
		if creds.TokenPath == "" && !cfg.HasGoogleToken() {
			return nil, fmt.Errorf("missing credentials: no Google token at %s", cfg.GoogleTokenPath())
		}
	}
	if creds.TokenPath == "" {
		creds.TokenPath = cfg.GoogleTokenPath()
	}
	return googletasks.New(ctx, creds)
}

// sourceErrorCode prints a source failure and maps it to an exit code.
func sourceErrorCode(errOut io.Writer, listName string, err error) int {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found") && listName != "":
		fmt.Fprintf(errOut, "error: list not found: %s\n", listName)
		return exitcode.UserError
	case strings.Contains(msg, "ambiguous"):
		fmt.Fprintf(errOut, "error: ambiguous list name: %s\n", listName)
		return exitcode.UserError
	case strings.Contains(msg, "credentials"):
		fmt.Fprintf(errOut, "error: auth error: %v\n", err)
		return exitcode.AuthError
	default:
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return exitcode.BackendError
	}
}

// ImportGoogleCmd implements the import-google command.
type ImportGoogleCmd struct {
	googleFlags
	listName string
	status   string
	markDone bool
	dryRun   bool
}

// SetSource replaces the Google Tasks client (for testing).
func (c *ImportGoogleCmd) SetSource(src service.ImportSource) {
	c.source = src
}

func (c *ImportGoogleCmd) Name() string      { return "import-google" }
func (c *ImportGoogleCmd) Aliases() []string { return []string{"import"} }
func (c *ImportGoogleCmd) Synopsis() string  { return "Copy open Google Tasks into the task backend" }
func (c *ImportGoogleCmd) Usage() string {
	return "taskctl import-google [--list <list-name>] [--credentials <file>] [--token <file>] [--status <status>] [--mark-done] [--dry-run]"
}
func (c *ImportGoogleCmd) NeedsAuth() bool { return true }

func (c *ImportGoogleCmd) RegisterFlags(fs *flag.FlagSet) {
	c.googleFlags.register(fs)
	fs.StringVar(&c.listName, "list", "", "")
	fs.StringVar(&c.listName, "l", "", "")
	fs.StringVar(&c.status, "status", string(model.StatusPending), "")
	fs.BoolVar(&c.markDone, "mark-done", false, "")
	fs.BoolVar(&c.dryRun, "dry-run", false, "")
}

func (c *ImportGoogleCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	status, err := model.ParseStatus(c.status)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	src, err := c.open(ctx, cfg)
	if err != nil {
		return sourceErrorCode(errOut, "", err)
	}

	var list service.ExternalList
	if c.listName != "" {
		list, err = src.ResolveList(ctx, c.listName)
	} else {
		list, err = src.DefaultList(ctx)
	}
	if err != nil {
		return sourceErrorCode(errOut, c.listName, err)
	}

	var pending []service.ExternalTask
	for page := 1; page <= maxImportPages; page++ {
		tasks, err := src.ListOpenTasks(ctx, list.ID, page)
		if err != nil {
			return sourceErrorCode(errOut, c.listName, err)
		}
		if len(tasks) == 0 {
			break
		}
		pending = append(pending, tasks...)
	}

	imported, skipped := 0, 0
	for _, ext := range pending {
		req, ok := importRequest(ext, status)
		if !ok {
			skipped++
			continue
		}
		if c.dryRun {
			fmt.Fprintf(out, "would import: %s\n", req.Title)
			imported++
			continue
		}
		if svc.CreateTask(ctx, req) == nil {
			fmt.Fprintf(errOut, "error: imported %d of %d tasks before failing\n", imported, len(pending))
			return failureCode(svc)
		}
		imported++
		if c.markDone {
			if err := src.CompleteTask(ctx, list.ID, ext.ID); err != nil {
				return sourceErrorCode(errOut, c.listName, err)
			}
		}
	}

	if !cfg.Quiet {
		verb := "imported"
		if c.dryRun {
			verb = "would import"
		}
		fmt.Fprintf(out, "%s %d %s from %s\n", verb, imported, taskNoun(imported), list.Title)
		if skipped > 0 {
			fmt.Fprintf(out, "skipped %d untitled %s\n", skipped, taskNoun(skipped))
		}
	}
	return exitcode.Success
}

// importRequest converts an external task. Untitled tasks cannot be created
// and are reported as not ok.
func importRequest(ext service.ExternalTask, status model.TaskStatus) (model.TaskCreateRequest, bool) {
	title := strings.TrimSpace(strings.ReplaceAll(ext.Title, "\n", " "))
	if title == "" {
		return model.TaskCreateRequest{}, false
	}

	var lines []string
	if notes := strings.TrimSpace(ext.Notes); notes != "" {
		lines = append(lines, notes)
	}
	if ext.Due != nil {
		lines = append(lines, "Due: "+ext.Due.UTC().Format(dueLayout))
	}

	req := model.TaskCreateRequest{Title: title, Status: status}
	if len(lines) > 0 {
		desc := strings.Join(lines, "\n\n")
		req.Description = &desc
	}
	return req, true
}

func taskNoun(n int) string {
	if n == 1 {
		return "task"
	}
	return "tasks"
}

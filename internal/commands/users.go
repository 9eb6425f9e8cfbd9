package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/model"
	"taskctl/internal/output"
	"taskctl/internal/service"
)

func init() {
	Register(&UsersCmd{})
}

// UsersCmd implements the users command.
type UsersCmd struct {
	page  int
	limit int
	all   bool
}

func (c *UsersCmd) Name() string      { return "users" }
func (c *UsersCmd) Aliases() []string { return nil }
func (c *UsersCmd) Synopsis() string  { return "List accounts (admin only)" }
func (c *UsersCmd) Usage() string     { return "taskctl users [--page <n>] [--limit <n>] [--all]" }
func (c *UsersCmd) NeedsAuth() bool   { return true }
func (c *UsersCmd) NeedsAdmin() bool  { return true }

func (c *UsersCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.page, "page", 0, "")
	fs.IntVar(&c.limit, "limit", 0, "")
	fs.BoolVar(&c.all, "all", false, "")
}

func (c *UsersCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	if c.page < 0 || c.limit < 0 {
		fmt.Fprintln(errOut, "error: page and limit must not be negative")
		return exitcode.UserError
	}

	page, ok := svc.ListUsers(ctx, model.UserFilter{Page: c.page, Limit: c.limit})
	if !ok {
		return failureCode(svc)
	}

	users := page.Items
	if c.all {
		for page.HasNextPage() {
			next, ok := svc.NextUsers(ctx)
			if !ok {
				return failureCode(svc)
			}
			if len(next.Items) == 0 {
				break
			}
			page = next
			users = append(users, next.Items...)
		}
	}

	if len(users) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no users found")
		}
		return exitcode.Success
	}
	if err := output.UserTable(out, users); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	if !c.all && !cfg.Quiet {
		output.Pager(out, page, "user")
	}
	return exitcode.Success
}

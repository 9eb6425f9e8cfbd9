package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/model"
	"taskctl/internal/output"
	"taskctl/internal/service"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
type ListCmd struct {
	page   int
	limit  int
	status string
	search string
	all    bool
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string {
	return "taskctl list [--page <n>] [--limit <n>] [--status <status>] [--search <text>] [--all]"
}
func (c *ListCmd) NeedsAuth() bool { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.page, "page", 0, "")
	fs.IntVar(&c.limit, "limit", 0, "")
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.status, "s", "", "")
	fs.StringVar(&c.search, "search", "", "")
	fs.StringVar(&c.search, "q", "", "")
	fs.BoolVar(&c.all, "all", false, "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	if c.page < 0 {
		fmt.Fprintf(errOut, "error: invalid page: %d\n", c.page)
		return exitcode.UserError
	}
	if c.limit < 0 {
		fmt.Fprintf(errOut, "error: invalid limit: %d\n", c.limit)
		return exitcode.UserError
	}
	status, err := model.ParseStatus(c.status)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	filter := model.TaskFilter{
		Page:   c.page,
		Limit:  c.limit,
		Status: status,
		Search: strings.TrimSpace(c.search),
	}

	if c.all {
		return c.listAll(ctx, svc, filter, out, errOut)
	}

	page, ok := svc.ListTasks(ctx, filter)
	if !ok {
		return failureCode(svc)
	}
	if len(page.Items) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no tasks found")
		}
		return exitcode.Success
	}
	if err := output.TaskTable(out, page.Items); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	if !cfg.Quiet {
		output.Pager(out, page, "task")
	}
	return exitcode.Success
}

// listAll walks every page from filter.Page on, keeping the filter on each
// request, and prints the tasks as one table.
func (c *ListCmd) listAll(ctx context.Context, svc service.Service, filter model.TaskFilter, out, errOut io.Writer) int {
	if filter.Page == 0 {
		filter.Page = 1
	}

	var tasks []model.Task
	for {
		page, ok := svc.ListTasks(ctx, filter)
		if !ok {
			return failureCode(svc)
		}
		tasks = append(tasks, page.Items...)
		if !page.HasNextPage() || len(page.Items) == 0 {
			break
		}
		filter.Page = page.Page + 1
	}

	if len(tasks) == 0 {
		fmt.Fprintln(out, "no tasks found")
		return exitcode.Success
	}
	if err := output.TaskTable(out, tasks); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}

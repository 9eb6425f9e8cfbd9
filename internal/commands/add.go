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
	"taskctl/internal/service"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	description string
	status      string
}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Create a task" }
func (c *AddCmd) Usage() string {
	return "taskctl add [--description <text>] [--status <status>] <title...>"
}
func (c *AddCmd) NeedsAuth() bool { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.description, "description", "", "")
	fs.StringVar(&c.description, "d", "", "")
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.status, "s", "", "")
}

// Run prints the new task's id on success.
func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		fmt.Fprintln(errOut, "error: title required")
		return exitcode.UserError
	}
	status, err := model.ParseStatus(c.status)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	req := model.TaskCreateRequest{Title: title, Status: status}
	if d := strings.TrimSpace(c.description); d != "" {
		req.Description = &d
	}

	task := svc.CreateTask(ctx, req)
	if task == nil {
		return failureCode(svc)
	}
	fmt.Fprintln(out, task.ID)
	return exitcode.Success
}

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
	Register(&UpdateCmd{})
}

// UpdateCmd implements the update command. Only flags that were given are sent.
type UpdateCmd struct {
	title       optionalString
	description optionalString
	status      optionalString
}

// optionalString is a flag.Value that remembers whether it was set, so an
// empty --description can clear the field.
type optionalString struct {
	value string
	set   bool
}

func (o *optionalString) String() string { return o.value }

func (o *optionalString) Set(s string) error {
	o.value = s
	o.set = true
	return nil
}

func (c *UpdateCmd) Name() string      { return "update" }
func (c *UpdateCmd) Aliases() []string { return []string{"edit"} }
func (c *UpdateCmd) Synopsis() string  { return "Change a task's title, description or status" }
func (c *UpdateCmd) Usage() string {
	return "taskctl update [--title <text>] [--description <text>] [--status <status>] <id>"
}
func (c *UpdateCmd) NeedsAuth() bool { return true }

func (c *UpdateCmd) RegisterFlags(fs *flag.FlagSet) {
	*c = UpdateCmd{}
	fs.Var(&c.title, "title", "")
	fs.Var(&c.title, "t", "")
	fs.Var(&c.description, "description", "")
	fs.Var(&c.description, "d", "")
	fs.Var(&c.status, "status", "")
	fs.Var(&c.status, "s", "")
}

func (c *UpdateCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	id, err := ParseTaskID(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	var patch model.TaskUpdateRequest
	if c.title.set {
		title := strings.TrimSpace(c.title.value)
		if title == "" {
			fmt.Fprintln(errOut, "error: title cannot be empty")
			return exitcode.UserError
		}
		patch.Title = &title
	}
	if c.description.set {
		d := c.description.value
		patch.Description = &d
	}
	if c.status.set {
		st, err := model.ParseStatus(c.status.value)
		if err != nil || st == "" {
			fmt.Fprintf(errOut, "error: invalid status: %s (must be pending, in_progress or completed)\n", c.status.value)
			return exitcode.UserError
		}
		patch.Status = &st
	}
	if patch.IsEmpty() {
		fmt.Fprintln(errOut, "error: nothing to update (use --title, --description or --status)")
		return exitcode.UserError
	}

	if svc.UpdateTask(ctx, id, patch) == nil {
		return failureCode(svc)
	}
	printOK(cfg, out)
	return exitcode.Success
}

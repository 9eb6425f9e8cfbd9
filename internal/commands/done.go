package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/model"
	"taskctl/internal/service"
)

func init() {
	Register(&DoneCmd{})
}

// DoneCmd implements the done command.
type DoneCmd struct{}

func (c *DoneCmd) Name() string      { return "done" }
func (c *DoneCmd) Aliases() []string { return nil }
func (c *DoneCmd) Synopsis() string  { return "Mark tasks completed" }
func (c *DoneCmd) Usage() string     { return "taskctl done <id...>" }
func (c *DoneCmd) NeedsAuth() bool   { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	ids, err := ParseTaskIDs(args)
	if err != nil {
		printIDError(errOut, err)
		return exitcode.UserError
	}

	completed := model.StatusCompleted
	patch := model.TaskUpdateRequest{Status: &completed}

	// Every id is attempted; the first failure decides the exit code.
	code := exitcode.Success
	for _, id := range ids {
		if svc.UpdateTask(ctx, id, patch) == nil && code == exitcode.Success {
			code = failureCode(svc)
		}
	}
	if code == exitcode.Success {
		printOK(cfg, out)
	}
	return code
}

func printIDError(errOut io.Writer, err error) {
	if errors.Is(err, ErrTaskIDRequired) {
		fmt.Fprintln(errOut, "error: task id required")
		return
	}
	fmt.Fprintf(errOut, "error: %v\n", err)
}

package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/model"
	"taskctl/internal/output"
	"taskctl/internal/service"
)

func init() {
	Register(&StatsCmd{})
}

// countError carries the HTTP status of one failed count.
type countError struct {
	status int
}

func (e *countError) Error() string { return fmt.Sprintf("count failed with status %d", e.status) }

// StatsCmd implements the stats command.
type StatsCmd struct {
	search string
}

func (c *StatsCmd) Name() string      { return "stats" }
func (c *StatsCmd) Aliases() []string { return nil }
func (c *StatsCmd) Synopsis() string  { return "Count tasks per status" }
func (c *StatsCmd) Usage() string     { return "taskctl stats [--search <text>]" }
func (c *StatsCmd) NeedsAuth() bool   { return true }

func (c *StatsCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.search, "search", "", "")
	fs.StringVar(&c.search, "q", "", "")
}

func (c *StatsCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	search := strings.TrimSpace(c.search)
	var mu sync.Mutex
	counts := make(map[model.TaskStatus]int, len(model.Statuses))

	// A plain group: one failed count must not cancel the others.
	var g errgroup.Group
	for _, st := range model.Statuses {
		g.Go(func() error {
			n, status, ok := svc.CountTasks(ctx, model.TaskFilter{Status: st, Search: search})
			if !ok {
				return &countError{status: status}
			}
			mu.Lock()
			counts[st] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var ce *countError
		if errors.As(err, &ce) {
			return statusCode(ce.status)
		}
		return exitcode.BackendError
	}

	output.StatusCounts(out, counts)
	return exitcode.Success
}

package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/service"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "taskctl help [command]" }
func (c *HelpCmd) NeedsAuth() bool   { return false }
func (c *HelpCmd) Offline() bool     { return true }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		cmd, ok := DefaultRegistry.Find(args[0])
		if !ok {
			fmt.Fprintf(errOut, "error: unknown command: %s\n", args[0])
			return exitcode.UserError
		}
		fmt.Fprintf(out, "%s\n\nUsage:\n  %s\n", cmd.Synopsis(), cmd.Usage())
		return exitcode.Success
	}
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  taskctl                                            List tasks (first page)
  taskctl list [common flags] [--page <n>] [--limit <n>] [--status <status>] [--search <text>] [--all]
  taskctl show [common flags] <id>
  taskctl add [common flags] [--description <text>] [--status <status>] <title...>
  taskctl create [common flags] [--description <text>] [--status <status>] <title...>
  taskctl update [common flags] [--title <text>] [--description <text>] [--status <status>] <id>
  taskctl done [common flags] <id...>
  taskctl rm [common flags] <id...>
  taskctl stats [common flags] [--search <text>]
  taskctl users [common flags] [--page <n>] [--limit <n>] [--all]
  taskctl import-google [common flags] [--list <name>] [--status <status>] [--mark-done] [--dry-run]
  taskctl google-lists [common flags] [--credentials <file>] [--token <file>]
  taskctl login [common flags] --email <email> [--password <password>]
  taskctl login [common flags] --oauth
  taskctl register [common flags] --name <name> --email <email> [--password <password>]
  taskctl logout [common flags]
  taskctl whoami [common flags]
  taskctl help [command]
  taskctl version [--verbose]

Statuses: pending, in_progress, completed

Common flags:
  --config <dir>   Override config directory
  --api <url>      Override the API base URL
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr

Environment:
  TASKCTL_API_BASE_URL, TASKCTL_TIMEOUT, TASKCTL_LOG_LEVEL, TASKCTL_COLOR,
  TASKCTL_PASSWORD
`

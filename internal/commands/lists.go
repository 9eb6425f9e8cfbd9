package commands

import (
	"context"
	"flag"
	"io"

	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/output"
	"taskctl/internal/service"
)

func init() {
	Register(&GoogleListsCmd{})
}

// GoogleListsCmd implements the google-lists command.
type GoogleListsCmd struct {
	googleFlags
}

// SetSource replaces the Google Tasks client (for testing).
func (c *GoogleListsCmd) SetSource(src service.ImportSource) {
	c.source = src
}

func (c *GoogleListsCmd) Name() string      { return "google-lists" }
func (c *GoogleListsCmd) Aliases() []string { return nil }
func (c *GoogleListsCmd) Synopsis() string  { return "Print the Google task lists available for import" }
func (c *GoogleListsCmd) Usage() string {
	return "taskctl google-lists [--credentials <file>] [--token <file>]"
}
func (c *GoogleListsCmd) NeedsAuth() bool { return false }
func (c *GoogleListsCmd) Offline() bool   { return true }

func (c *GoogleListsCmd) RegisterFlags(fs *flag.FlagSet) {
	c.googleFlags.register(fs)
}

func (c *GoogleListsCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	src, err := c.open(ctx, cfg)
	if err != nil {
		return sourceErrorCode(errOut, "", err)
	}

	lists, err := src.ListLists(ctx)
	if err != nil {
		return sourceErrorCode(errOut, "", err)
	}

	for _, list := range lists {
		output.FormatListName(out, list)
	}
	return exitcode.Success
}

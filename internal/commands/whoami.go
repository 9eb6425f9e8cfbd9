package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/output"
	"taskctl/internal/service"
)

func init() {
	Register(&WhoamiCmd{})
}

// WhoamiCmd implements the whoami command.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Name() string      { return "whoami" }
func (c *WhoamiCmd) Aliases() []string { return []string{"me"} }
func (c *WhoamiCmd) Synopsis() string  { return "Print the logged-in account" }
func (c *WhoamiCmd) Usage() string     { return "taskctl whoami [common flags]" }
func (c *WhoamiCmd) NeedsAuth() bool   { return true }

func (c *WhoamiCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WhoamiCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	user := svc.CurrentUser()
	if user == nil {
		fmt.Fprintln(errOut, "error: not logged in (run: taskctl login)")
		return exitcode.AuthError
	}

	var info *service.TokenInfo
	if ti, ok := svc.TokenInfo(); ok {
		info = &ti
	}
	output.UserDetail(out, *user, info, time.Now())
	return exitcode.Success
}

package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"runtime"

	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/service"
)

// Version is the application version. Set at build time.
var Version = "0.1.0"

func init() {
	Register(&VersionCmd{})
}

// VersionCmd implements the version command.
type VersionCmd struct {
	verbose bool
}

func (c *VersionCmd) Name() string      { return "version" }
func (c *VersionCmd) Aliases() []string { return nil }
func (c *VersionCmd) Synopsis() string  { return "Print version" }
func (c *VersionCmd) Usage() string     { return "taskctl version [--verbose]" }
func (c *VersionCmd) NeedsAuth() bool   { return false }
func (c *VersionCmd) Offline() bool     { return true }

func (c *VersionCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.verbose, "verbose", false, "")
	fs.BoolVar(&c.verbose, "v", false, "")
}

// Run prints the version. --verbose adds the Go toolchain and the settings
// a bug report needs.
func (c *VersionCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	fmt.Fprintf(out, "taskctl %s\n", Version)
	if !c.verbose {
		return exitcode.Success
	}
	fmt.Fprintf(out, "go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(out, "api:    %s\n", cfg.APIBaseURL)
	fmt.Fprintf(out, "config: %s\n", cfg.Dir)
	return exitcode.Success
}

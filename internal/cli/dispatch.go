package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"taskctl/internal/commands"
	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/logging"
	"taskctl/internal/model"
	"taskctl/internal/notify"
	"taskctl/internal/service"
)

// closeTimeout bounds how long the dispatcher waits for background requests
// such as the logout call after a command returns.
const closeTimeout = 5 * time.Second

// ServiceFactory creates a Service from config.
// Notifications go to sink; diagnostics go to logger.
type ServiceFactory func(ctx context.Context, cfg *config.Config, sink notify.Sink, logger *slog.Logger) (service.Service, error)

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  ServiceFactory
}

// NewDispatcher creates a new dispatcher with the given registry and service factory.
func NewDispatcher(registry *commands.Registry, factory ServiceFactory) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		factory:  factory,
	}
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	// No args -> dispatch to "list" command with no args
	if len(args) == 0 {
		return d.dispatch(ctx, "list", nil, out, errOut)
	}

	cmdName := args[0]

	// If first token starts with -, it's an error (flags require a command)
	if strings.HasPrefix(cmdName, "-") {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	return d.dispatch(ctx, cmdName, args[1:], out, errOut)
}

func (d *Dispatcher) dispatch(ctx context.Context, cmdName string, args []string, out, errOut io.Writer) int {
	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}
	return d.dispatchCommand(ctx, cmd, args, out, errOut)
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, args []string, out, errOut io.Writer) int {
	// Create flag set with custom error handling
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard) // We handle errors ourselves

	// Common flags
	var configDir string
	var apiURL string
	var quiet bool
	var debug bool

	fs.StringVar(&configDir, "config", "", "")
	fs.StringVar(&apiURL, "api", "", "")
	fs.BoolVar(&quiet, "quiet", false, "")
	fs.BoolVar(&debug, "debug", false, "")

	// Register command-specific flags
	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return flagError(err, errOut)
	}

	// Check if first positional arg starts with - (should have been parsed as flag)
	positionalArgs := fs.Args()
	if len(positionalArgs) > 0 && strings.HasPrefix(positionalArgs[0], "-") {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", positionalArgs[0])
		return exitcode.UserError
	}

	cfg, err := config.New(configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	cfg.Quiet = quiet
	cfg.Debug = debug
	if apiURL != "" {
		cfg.APIBaseURL = apiURL
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(errOut, "error: %s\n", err)
			return exitcode.UserError
		}
	}

	if commands.IsOffline(cmd) {
		return cmd.Run(ctx, cfg, nil, positionalArgs, out, errOut)
	}

	logger := logging.New(errOut, cfg.LogLevel, cfg.Debug)
	mode, _ := notify.ParseColorMode(cfg.Color)
	sink := notify.NewPrinter(errOut, mode, cfg.Quiet)

	if d.factory == nil {
		fmt.Fprintln(errOut, "error: backend error: no service configured")
		return exitcode.BackendError
	}
	svc, err := d.factory(ctx, cfg, sink, logger)
	if err != nil {
		fmt.Fprintf(errOut, "error: backend error: %s\n", err)
		return exitcode.BackendError
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := svc.Close(closeCtx); err != nil {
			logger.Debug("background requests did not finish", "error", err)
		}
	}()

	// Check auth requirements
	if cmd.NeedsAuth() {
		if !svc.Initialize(ctx) {
			fmt.Fprintln(errOut, "error: not logged in (run: taskctl login)")
			return exitcode.AuthError
		}
		if commands.IsAdminOnly(cmd) {
			if u := svc.CurrentUser(); u == nil || !u.IsAdmin() {
				fmt.Fprintln(errOut, "error: admin access required")
				return exitcode.AuthError
			}
		}
	}

	var expired atomic.Bool
	svc.OnSessionExpired(func(prev *model.User) {
		expired.Store(true)
	})

	code := cmd.Run(ctx, cfg, svc, positionalArgs, out, errOut)
	if expired.Load() {
		fmt.Fprintln(errOut, "error: session expired (run: taskctl login)")
		return exitcode.AuthError
	}
	return code
}

// flagError reports a flag parsing failure the way the rest of the CLI
// reports errors.
func flagError(err error, errOut io.Writer) int {
	errStr := err.Error()

	// Check for missing flag value
	if strings.Contains(errStr, "flag needs an argument") {
		flagPart := strings.TrimSpace(strings.TrimPrefix(errStr, "flag needs an argument:"))
		fmt.Fprintf(errOut, "error: flag needs an argument: %s\n", flagPart)
		return exitcode.UserError
	}

	// Check for unknown flag
	if strings.HasPrefix(errStr, "flag provided but not defined:") {
		flagName := strings.TrimPrefix(errStr, "flag provided but not defined: ")
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", flagName)
		return exitcode.UserError
	}

	fmt.Fprintf(errOut, "error: %s\n", errStr)
	return exitcode.UserError
}

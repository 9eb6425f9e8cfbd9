// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"

	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/service"
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsAuth returns true if the command requires a validated session.
	// Commands like help, version, login, logout return false.
	NeedsAuth() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// cfg is always provided (config dir, paths).
	// svc is nil only for offline commands.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int
}

// AdminCommand is implemented by commands that only admins may run.
type AdminCommand interface {
	NeedsAdmin() bool
}

// OfflineCommand is implemented by commands that never reach the backend.
// They are run with a nil Service.
type OfflineCommand interface {
	Offline() bool
}

// IsOffline reports whether c runs without a Service.
func IsOffline(c Command) bool {
	o, ok := c.(OfflineCommand)
	return ok && o.Offline()
}

// IsAdminOnly reports whether c is restricted to admins.
func IsAdminOnly(c Command) bool {
	a, ok := c.(AdminCommand)
	return ok && a.NeedsAdmin()
}

// printOK writes "ok" unless quiet.
func printOK(cfg *config.Config, out io.Writer) {
	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
}

// failureCode maps the last failed request to an exit code. The message has
// already been shown through the notification sink.
func failureCode(svc service.Service) int {
	return statusCode(svc.LastStatus())
}

// statusCode maps the HTTP status of a failed request to an exit code.
// 0 means no response was obtained.
func statusCode(status int) int {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusForbidden:
		return exitcode.UserError
	case http.StatusUnauthorized:
		return exitcode.AuthError
	default:
		return exitcode.BackendError
	}
}

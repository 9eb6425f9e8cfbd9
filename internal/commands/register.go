package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/model"
	"taskctl/internal/service"
)

func init() {
	Register(&RegisterCmd{})
}

// RegisterCmd implements the register command.
type RegisterCmd struct {
	name     string
	email    string
	password string
}

func (c *RegisterCmd) Name() string      { return "register" }
func (c *RegisterCmd) Aliases() []string { return []string{"signup"} }
func (c *RegisterCmd) Synopsis() string  { return "Create an account and log in" }
func (c *RegisterCmd) Usage() string {
	return "taskctl register --name <name> --email <email> [--password <password>]"
}
func (c *RegisterCmd) NeedsAuth() bool { return false }

func (c *RegisterCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.name, "name", "", "")
	fs.StringVar(&c.email, "email", "", "")
	fs.StringVar(&c.email, "e", "", "")
	fs.StringVar(&c.password, "password", "", "")
	fs.StringVar(&c.password, "p", "", "")
}

func (c *RegisterCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	name := strings.TrimSpace(c.name)
	email := strings.TrimSpace(c.email)
	if name == "" || email == "" {
		fmt.Fprintln(errOut, "error: --name and --email required")
		return exitcode.UserError
	}
	password := c.password
	if password == "" {
		password = os.Getenv(PasswordEnv)
	}
	if password == "" {
		fmt.Fprintf(errOut, "error: --password or %s required\n", PasswordEnv)
		return exitcode.UserError
	}

	if !svc.Register(ctx, model.RegisterRequest{Name: name, Email: email, Password: password}) {
		code := authFailure(svc, "registration", errOut)
		if svc.LastStatus() == http.StatusBadRequest || svc.LastStatus() == http.StatusConflict {
			return exitcode.UserError
		}
		return code
	}
	printLoggedIn(cfg, svc, out)
	return exitcode.Success
}

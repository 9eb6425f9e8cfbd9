package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"taskctl/internal/config"
	"taskctl/internal/exitcode"
	"taskctl/internal/model"
	"taskctl/internal/service"
)

const (
	// PasswordEnv supplies the password when --password is omitted.
	PasswordEnv = "TASKCTL_PASSWORD"

	// callbackPath is where the backend redirects after browser login.
	callbackPath = "/auth/callback"
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	email    string
	password string
	oauth    bool

	listener net.Listener
}

// SetCallbackListener makes the browser flow serve on l instead of the
// configured port (for testing).
func (c *LoginCmd) SetCallbackListener(l net.Listener) {
	c.listener = l
}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return nil }
func (c *LoginCmd) Synopsis() string  { return "Log in with email and password, or in the browser" }
func (c *LoginCmd) Usage() string {
	return "taskctl login --email <email> [--password <password>] | --oauth"
}
func (c *LoginCmd) NeedsAuth() bool { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
	fs.StringVar(&c.email, "e", "", "")
	fs.StringVar(&c.password, "password", "", "")
	fs.StringVar(&c.password, "p", "", "")
	fs.BoolVar(&c.oauth, "oauth", false, "")
}

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	if c.oauth && c.email != "" {
		fmt.Fprintln(errOut, "error: cannot use both --email and --oauth")
		return exitcode.UserError
	}
	if !c.oauth && c.email == "" {
		fmt.Fprintln(errOut, "error: --email or --oauth required")
		return exitcode.UserError
	}

	if svc.Initialize(ctx) {
		if !cfg.Quiet {
			fmt.Fprintln(out, "already logged in")
		}
		return exitcode.Success
	}

	if c.oauth {
		return c.runBrowserLogin(ctx, cfg, svc, out, errOut)
	}

	password := c.password
	if password == "" {
		password = os.Getenv(PasswordEnv)
	}
	if password == "" {
		fmt.Fprintf(errOut, "error: --password or %s required\n", PasswordEnv)
		return exitcode.UserError
	}

	if !svc.Login(ctx, model.LoginRequest{Email: strings.TrimSpace(c.email), Password: password}) {
		return authFailure(svc, "login", errOut)
	}
	printLoggedIn(cfg, svc, out)
	return exitcode.Success
}

// runBrowserLogin prints the backend's OAuth address and waits for the
// redirect carrying the access token on the local callback server.
func (c *LoginCmd) runBrowserLogin(ctx context.Context, cfg *config.Config, svc service.Service, out, errOut io.Writer) int {
	listener := c.listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", fmt.Sprintf("localhost:%d", cfg.OAuth.CallbackPort))
		if err != nil {
			fmt.Fprintf(errOut, "error: could not bind to port %d for login callback\n", cfg.OAuth.CallbackPort)
			return exitcode.AuthError
		}
		fmt.Fprintf(errOut, "Waiting for the login redirect on %s\n", cfg.CallbackURL())
	}
	defer listener.Close()

	fmt.Fprintln(errOut, "Open this URL in your browser:")
	fmt.Fprintln(errOut, svc.OAuthURL())

	tokenCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		token := q.Get("token")
		if q.Get("success") != "true" || token == "" {
			msg := q.Get("error")
			if msg == "" {
				msg = "no token in callback"
			}
			http.Error(w, "Login failed", http.StatusBadRequest)
			sendErr(errCh, errors.New(msg))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>Login successful</h1><p>You may close this window.</p></body></html>")
		select {
		case tokenCh <- token:
		default:
		}
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			sendErr(errCh, err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	var token string
	select {
	case token = <-tokenCh:
	case err := <-errCh:
		fmt.Fprintf(errOut, "error: login failed: %v\n", err)
		return exitcode.AuthError
	case <-time.After(cfg.OAuth.CallbackTimeout):
		fmt.Fprintln(errOut, "error: login callback timed out")
		return exitcode.AuthError
	case <-ctx.Done():
		fmt.Fprintln(errOut, "error: cancelled")
		return exitcode.AuthError
	}

	if !svc.AdoptToken(ctx, token) {
		return authFailure(svc, "login", errOut)
	}
	printLoggedIn(cfg, svc, out)
	return exitcode.Success
}

func sendErr(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}

// authFailure reports a failed login or registration. Auth endpoints stay off
// the notification channel, so the reason is printed here.
func authFailure(svc service.Service, what string, errOut io.Writer) int {
	if msg := svc.LastError(); msg != "" {
		fmt.Fprintf(errOut, "error: %s failed: %s\n", what, msg)
	} else {
		fmt.Fprintf(errOut, "error: %s failed\n", what)
	}
	if svc.LastStatus() == 0 && svc.LastError() != "" {
		return exitcode.BackendError
	}
	return exitcode.AuthError
}

func printLoggedIn(cfg *config.Config, svc service.Service, out io.Writer) {
	if cfg.Quiet {
		return
	}
	if u := svc.CurrentUser(); u != nil {
		fmt.Fprintf(out, "logged in as %s <%s>\n", u.Name, u.Email)
		return
	}
	fmt.Fprintln(out, "ok")
}

// Package exitcode defines the process exit codes shared by every command.
package exitcode

const (
	// Success indicates successful completion.
	Success = 0

	// UserError covers bad arguments and 4xx rejections other than 401.
	UserError = 1

	// AuthError covers sessions the server does not accept and unusable
	// Google credentials.
	AuthError = 2

	// BackendError covers transport failures and server errors.
	BackendError = 3
)

package cli

import (
	"errors"

	"github.com/forgo/vitals/internal/database"
)

// Exit codes returned by dbctl.
const (
	ExitSuccess         = 0  // Command completed
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // Missing arguments or invalid flags
	ExitPanic           = 3  // Internal panic
	ExitConfigError     = 10 // Invalid configuration
	ExitConnectionError = 11 // Session could not be established
	ExitAuthError       = 12 // Credentials rejected
	ExitQueryFailed     = 13 // Statement or transaction failed
	ExitUnhealthy       = 14 // Health probe did not report healthy
)

var (
	// ErrUsage marks argument and flag errors.
	ErrUsage = errors.New("usage error")

	// ErrInvalidConfig marks configuration that failed to load or validate.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnhealthy is returned by health when the probe is not healthy.
	ErrUnhealthy = errors.New("database is not healthy")
)

// ExitCodeForError maps an error returned by a command to a process exit code.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrUsage):
		return ExitUsageError
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, database.ErrAuthentication):
		return ExitAuthError
	case errors.Is(err, database.ErrConnection):
		return ExitConnectionError
	case errors.Is(err, ErrUnhealthy):
		return ExitUnhealthy
	case errors.Is(err, database.ErrQuery),
		errors.Is(err, database.ErrTransaction):
		return ExitQueryFailed
	}

	var stmtErr *database.StatementError
	if errors.As(err, &stmtErr) {
		return ExitQueryFailed
	}
	return ExitGeneralError
}

package handler

import (
	"context"
	"errors"

	"github.com/forgo/vitals/internal/database"
	"github.com/forgo/vitals/internal/model"
)

// MapDatabaseError converts a data-access error to a ProblemDetails
// response. Statement text and credentials never reach the client.
func MapDatabaseError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, database.ErrNotFound):
		return model.NewNotFoundError("record")
	case errors.Is(err, database.ErrDuplicate):
		return model.NewConflictError("record already exists")
	case errors.Is(err, database.ErrConnection),
		errors.Is(err, database.ErrAuthentication),
		errors.Is(err, database.ErrTransactionBusy),
		errors.Is(err, context.DeadlineExceeded):
		return model.NewServiceUnavailableError("database is unavailable")
	default:
		return model.NewDatabaseError(database.ErrorKind(err))
	}
}

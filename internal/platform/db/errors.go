package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
)

// MapError translates pgx and Postgres errors into apperr kinds at the store
// boundary. what names the operation or row for the message.
func MapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s not found", what)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return apperr.Wrap(apperr.ErrConflict, err, "%s already exists", what)
		case pgErr.Code == "23503":
			return apperr.Wrap(apperr.ErrNotFound, err, "%s references a missing row", what)
		case pgErr.Code == "42501":
			return apperr.Wrap(apperr.ErrForbidden, err, "%s outside caller scope", what)
		case pgErr.Code == "23514" || pgErr.Code == "23502" || pgErr.Code == "22P02" || pgErr.Code == "22007":
			return apperr.Wrap(apperr.ErrValidation, err, "invalid %s", what)
		case strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P") || pgErr.Code == "53300":
			return apperr.Unavailable(err, "%s", what)
		}
		return fmt.Errorf("%s: %w", what, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return apperr.Unavailable(err, "%s", what)
	}
	return fmt.Errorf("%s: %w", what, err)
}

package service

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("requested resource not found")
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("operation not allowed for the current user")
)

// notFound turns a missing row into ErrNotFound and wraps anything else with what.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

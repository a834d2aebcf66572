// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values let higher layers such as the
// reservation manager tell storage outcomes apart without inspecting SQL
// errors.  ErrNotFound wraps sql.ErrNoRows so callers may match either.
package repository

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = fmt.Errorf("not found: %w", sql.ErrNoRows)

// ErrNoCapacity is returned by the conditional increment when the slot is
// already at capacity (zero rows affected).
var ErrNoCapacity = errors.New("slot at capacity")

// ErrNoRowsChanged is returned by conditional updates whose guard did not
// match, e.g. cancelling a booking that is already CANCELLED.
var ErrNoRowsChanged = errors.New("no rows changed")

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

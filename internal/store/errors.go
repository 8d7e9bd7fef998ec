package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested row does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert would duplicate an existing active
// row, e.g. adding a deny entry that is already present for the same
// target and scope.
var ErrConflict = errors.New("already exists")

// isUniqueViolation reports whether a driver error is a unique-constraint
// violation, for either backing driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

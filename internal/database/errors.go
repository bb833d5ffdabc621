package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors returned by the repository. Handlers map these onto the
// request-boundary error taxonomy.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates a unique constraint violation, e.g. a taken
	// username, a second active chat or a second review for a chat.
	ErrDuplicate = errors.New("duplicate record")
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationCode
	}
	return false
}

// mapError translates driver-level errors into repository sentinels so no
// storage error leaks verbatim past this package.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case isUniqueViolation(err):
		return ErrDuplicate
	default:
		return err
	}
}

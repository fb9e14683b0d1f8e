package submission

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"tallyboard/internal/validation"
)

// ErrInvalidReference is returned when a location id does not resolve.
// The returned error also wraps the *geo.ReferenceError naming the level.
var ErrInvalidReference = errors.New("invalid reference ids")

// ValidationError lists every rule the document broke. Nothing was read
// from or written to the store.
type ValidationError struct {
	Violations []validation.Violation
}

func (e *ValidationError) Error() string {
	return "validation failed: " + validation.Summary(e.Violations)
}

// StationError is returned when a record names a station index the
// center does not have.
type StationError struct {
	StationIndex int
}

func (e *StationError) Error() string {
	return fmt.Sprintf("invalid polling station index %d", e.StationIndex)
}

// StoreError wraps a failure of the store itself. Code is the SQLSTATE when
// the store is PostgreSQL.
type StoreError struct {
	Op   string
	Code string
	Err  error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Code != "" {
		b.WriteString(" [" + e.Code + "]")
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeError(op string, err error) *StoreError {
	se := &StoreError{Op: op, Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		se.Code = pgErr.Code
	}
	return se
}

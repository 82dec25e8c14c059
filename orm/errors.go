package orm

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ncruces/go-sqlite3"
)

var (
	// ErrNotFound is returned when a query expects exactly one row but finds
	// none, and when an update targets a row that does not exist.
	ErrNotFound = errors.New("orm: not found")

	// ErrConstraintViolation is returned when the backend rejects a write
	// because of a NOT NULL, UNIQUE, FOREIGN KEY or CHECK constraint.
	ErrConstraintViolation = errors.New("orm: constraint violation")
)

// ConstraintError wraps a driver error that was classified as a constraint
// violation. It matches ErrConstraintViolation with errors.Is and still
// exposes the driver error through errors.As.
type ConstraintError struct {
	Table string
	Err   error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("orm: constraint violation on %s: %v", e.Table, e.Err)
}

func (e *ConstraintError) Unwrap() []error {
	return []error{ErrConstraintViolation, e.Err}
}

// classify wraps err in a ConstraintError when the driver reports an
// integrity violation. Other errors are returned unchanged.
func classify(table string, err error) error {
	if err == nil || !isConstraint(err) {
		return err
	}
	return &ConstraintError{Table: table, Err: err}
}

func isConstraint(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1048, // column cannot be null
			1062, // duplicate entry
			1451, // cannot delete or update a parent row
			1452: // cannot add or update a child row
			return true
		}
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 23: integrity constraint violation.
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "23"
	}

	return errors.Is(err, sqlite3.CONSTRAINT)
}

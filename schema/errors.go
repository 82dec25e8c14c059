package schema

import (
	"errors"
	"fmt"

	"github.com/SJBM1876/Musicians-and-Bands-Database/orm"
)

var (
	// ErrUnknownKind is returned when a kind name has not been registered.
	ErrUnknownKind = errors.New("schema: unknown kind")

	// ErrDuplicateKind is returned when a kind is registered twice.
	ErrDuplicateKind = errors.New("schema: duplicate kind")

	// ErrInvalidDefinition is returned for malformed kind, field, foreign
	// key or join table definitions.
	ErrInvalidDefinition = errors.New("schema: invalid definition")
)

// FieldError reports a value that does not satisfy a kind's field
// specification. It matches orm.ErrConstraintViolation with errors.Is, the
// same as constraint failures reported by the backend.
type FieldError struct {
	Kind   string
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("schema: %s.%s: %s", e.Kind, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return orm.ErrConstraintViolation }

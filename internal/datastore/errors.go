// ABOUTME: Sentinel errors for the entity store and bad-request classification
// ABOUTME: Handle lookups against unknown ids are caller errors, not faults

package datastore

import (
	"errors"

	"github.com/openprm/datastore/internal/entity"
	"github.com/openprm/datastore/internal/query"
)

// ErrTransactionNotFound is returned when an operation references a
// transaction handle that is not open.
var ErrTransactionNotFound = errors.New("transaction handle not found")

// ErrCursorNotFound is returned when Next references an unknown or already
// removed cursor.
var ErrCursorNotFound = errors.New("cursor not found")

// IsBadRequest reports whether the error is a caller contract violation
// (unsupported type or operator, duplicate condition, unknown handle) as
// opposed to an internal or relational-engine fault. Uses errors.Is to see
// through wrapping.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrCursorNotFound) ||
		errors.Is(err, entity.ErrUnsupportedType) ||
		errors.Is(err, query.ErrUnsupportedOperator) ||
		errors.Is(err, query.ErrDuplicateCondition)
}

package utils

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorInsufficientStock is returned when a stock decrement would drive a
// product's on-hand quantity negative. Callers must roll back the enclosing
// transaction.
var ErrorInsufficientStock = errors.New("insufficient stock")

// ValidationError marks a caller mistake (missing or malformed input).
// The HTTP layer maps it to a 400 response.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsDuplicateEntryError reports whether err is a MySQL unique-key violation.
// Pre-insert uniqueness checks race with concurrent writers; the constraint
// is the final arbiter and its failure maps to a validation error.
func IsDuplicateEntryError(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

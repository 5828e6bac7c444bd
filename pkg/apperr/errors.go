// Package apperr defines the error taxonomy shared by the store and the admin site.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup by identifier matches no row.
var ErrNotFound = errors.New("record not found")

// ValidationError is a field constraint violation detected before persistence.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// ConflictError is a uniqueness violation reported by the storage layer.
type ConflictError struct {
	Entity string
	Err    error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s already exists", e.Entity)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// ReferentialError is a reference to a related row that does not exist.
type ReferentialError struct {
	Field string
	Err   error
}

func (e *ReferentialError) Error() string {
	if e.Field == "" {
		return "referenced record does not exist"
	}
	return fmt.Sprintf("referenced record does not exist: %s", e.Field)
}

func (e *ReferentialError) Unwrap() error {
	return e.Err
}

// Validation builds a ValidationError.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// MissingReference builds a ReferentialError for field.
func MissingReference(field string) error {
	return &ReferentialError{Field: field}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsReferential(err error) bool {
	var re *ReferentialError
	return errors.As(err, &re)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Classify maps driver errors onto the taxonomy. Errors that are already
// classified, and errors that match nothing, are returned unchanged.
func Classify(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case IsValidation(err), IsConflict(err), IsReferential(err), IsNotFound(err):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", entity, ErrNotFound)
	case isDuplicate(err):
		return &ConflictError{Entity: entity, Err: err}
	case isForeignKey(err):
		return &ReferentialError{Err: err}
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKey(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1451 || myErr.Number == 1452
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

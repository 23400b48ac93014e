package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Error kinds, matched with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrDependency         = errors.New("dependency failure")
	ErrConcurrencyTimeout = errors.New("concurrency timeout")
)

// ServiceError carries a caller-facing message and the kind it belongs to.
type ServiceError struct {
	Kind    error
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Is(target error) bool {
	return target == e.Kind
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func NewValidationError(format string, args ...any) error {
	return &ServiceError{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...any) error {
	return &ServiceError{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewConflictError(format string, args ...any) error {
	return &ServiceError{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func NewDependencyFailure(err error, format string, args ...any) error {
	return &ServiceError{Kind: ErrDependency, Message: fmt.Sprintf(format, args...), Err: err}
}

func NewConcurrencyTimeout(err error, format string, args ...any) error {
	return &ServiceError{Kind: ErrConcurrencyTimeout, Message: fmt.Sprintf(format, args...), Err: err}
}

// Postgres SQLSTATE codes the services react to.
const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
	pgQueryCanceled    = "57014"
)

func pgCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

// isLockTimeout reports whether err means the row lock could not be taken in time.
func isLockTimeout(err error) bool {
	switch pgCode(err) {
	case pgLockNotAvailable, pgQueryCanceled:
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// newFieldValidationError keeps the validator's field errors reachable
// through errors.As so handlers can report them per field.
func newFieldValidationError(err error, message string) error {
	return &ServiceError{Kind: ErrValidation, Message: message, Err: err}
}

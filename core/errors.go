package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrConflict        = errors.New("document revision conflict")
	ErrInvalidDocument = errors.New("invalid presentation data")
	ErrValidation      = errors.New("validation failed")
	ErrForbidden       = errors.New("forbidden")
	ErrTransient       = errors.New("transient failure")
)

type (
	// ValidationError rejects an input before any remote call is made.
	ValidationError struct {
		Field  string
		Reason string
	}

	// ForbiddenError rejects an action the user's role does not allow. It
	// is also a validation failure.
	ForbiddenError struct {
		Username string
		Action   string
	}

	// TransientError wraps a failed, timed out or malformed remote call.
	TransientError struct {
		Op  string
		Err error
	}
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("user %q may not %s", e.Username, e.Action)
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden || target == ErrValidation
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// Transient wraps err as a TransientError unless it already is one.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransientError
	if errors.As(err, &te) {
		return err
	}
	return &TransientError{Op: op, Err: err}
}

package services

import (
	"errors"
	"fmt"

	"github.com/cntrlcomply/backend/notify"
)

var (
	ErrNotFound              = errors.New("record not found")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrInsufficientSelection = errors.New("please select at least 2 documents")
	ErrConflict              = errors.New("conflict")
)

// ValidationError rejects user input before any work is done. Title and
// Description are shown to the user as-is.
type ValidationError struct {
	Title       string
	Description string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Title, e.Description)
}

func invalid(title, description string) error {
	return &ValidationError{Title: title, Description: description}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// toastInvalid shows a validation failure to the user as a destructive
// toast. Any other error passes through untouched.
func toastInvalid(n notify.Notifier, err error) error {
	if v, ok := IsValidation(err); ok {
		n.Publish(notify.Failure(v.Title, v.Description))
	}
	return err
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

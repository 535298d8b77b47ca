package gateway

import (
	"errors"
	"fmt"
)

// ErrImageNotFound means the reference resolves to no image URL.
var ErrImageNotFound = errors.New("image not found")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// TransientError wraps failures that may succeed on retry.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("refresh request failed: %v", e.Err)
	}

	return fmt.Sprintf("refresh request failed with status %d: %v", e.Status, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTerminal reports whether retrying err cannot help.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrImageNotFound) {
		return true
	}

	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

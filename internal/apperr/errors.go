package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the service layers. HTTP and websocket
// surfaces map these to their transport-specific codes.
var (
	ErrValidation            = errors.New("validation error")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrNotFound              = errors.New("not found")
	ErrDuplicateConversation = errors.New("conversation already exists")
)

// Validation wraps a human-readable reason so errors.Is(err, ErrValidation)
// still holds.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

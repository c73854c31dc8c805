package matcher

import (
	"errors"
	"fmt"
)

// ErrUsage is matched by every *UsageError.
var ErrUsage = errors.New("usage error")

// ErrReleased is returned when a Database or Scratch is used or released
// after it has already been released.
var ErrReleased = errors.New("handle already released")

// UsageError reports a malformed request detected before any engine call.
// Field names the offending request field, e.g. "expressions[2].flags".
type UsageError struct {
	Field   string
	Message string
}

func (e *UsageError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *UsageError) Is(target error) bool {
	return target == ErrUsage
}

func usageError(field, format string, args ...any) *UsageError {
	return &UsageError{Field: field, Message: fmt.Sprintf(format, args...)}
}

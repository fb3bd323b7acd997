package sequence

import (
	"errors"
	"fmt"
)

// Sentinel errors for the sequence service layer.
var (
	ErrNotFound         = errors.New("sequence not found")
	ErrPersonNotFound   = errors.New("person not found")
	ErrAlreadyEnrolled  = errors.New("person already enrolled in sequence")
	ErrPersonSuppressed = errors.New("person is suppressed")
	ErrDuplicateSend    = errors.New("step already sent for enrollment")
)

// ValidationError rejects malformed admin input before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

package campaign

import (
	"errors"
	"fmt"
)

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound      = errors.New("campaign not found")
	ErrDraftNotFound = errors.New("draft not found or already sent")
	ErrTopicNotFound = errors.New("topic not found")
	ErrNoRecipients  = errors.New("no recipients in this audience")
	ErrNotArchived   = errors.New("campaign has no archived content")
)

// ValidationError rejects a malformed broadcast request before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

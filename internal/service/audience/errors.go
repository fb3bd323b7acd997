package audience

import "fmt"

// Limits on condition trees accepted from callers.
const (
	MaxGroups             = 10
	MaxConditionsPerGroup = 10
)

// ValidationError reports a malformed condition tree. It is returned before
// any store access.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid conditions: " + e.Reason }

func invalidf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

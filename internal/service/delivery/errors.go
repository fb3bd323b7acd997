package delivery

import "errors"

var (
	// ErrNotConfigured is returned when no provider credentials are set.
	ErrNotConfigured = errors.New("mail provider not configured")

	// ErrBatchTooLarge is returned by providers when a batch exceeds their
	// MaxBatchSize.
	ErrBatchTooLarge = errors.New("batch exceeds provider limit")
)

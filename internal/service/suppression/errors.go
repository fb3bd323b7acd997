package suppression

import "errors"

// Sentinel errors for the suppression service layer.
var (
	ErrNotFound     = errors.New("person not found")
	ErrInvalidToken = errors.New("invalid unsubscribe token")
)

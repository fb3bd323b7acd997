package engagement

import "errors"

// Sentinel errors for webhook verification and ingestion.
var (
	ErrNotConfigured   = errors.New("webhook secret not configured")
	ErrMissingHeaders  = errors.New("missing signature headers")
	ErrStaleTimestamp  = errors.New("timestamp outside tolerance")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrInvalidSecret   = errors.New("webhook secret is not valid base64")
	ErrBadSignature    = errors.New("invalid signature")
	ErrInvalidPayload  = errors.New("invalid JSON payload")
	ErrDuplicateEvent  = errors.New("event already recorded")
	ErrUnknownCampaign = errors.New("campaign does not exist")
)

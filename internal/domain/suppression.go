package domain

// SuppressionReason explains why a person is not eligible for mail.
// The empty reason means the person is eligible.
type SuppressionReason string

const (
	SuppressionNone         SuppressionReason = ""
	SuppressionNoEmail      SuppressionReason = "missing_email"
	SuppressionNoToken      SuppressionReason = "missing_token"
	SuppressionArchived     SuppressionReason = "archived"
	SuppressionUnsubscribed SuppressionReason = "unsubscribed"
	SuppressionBounced      SuppressionReason = "bounced"
)

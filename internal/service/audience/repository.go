package audience

import (
	"context"

	"github.com/rijksuitgaven/mailengine/internal/domain"
)

// Repository defines the read-only queries the resolver needs.
type Repository interface {
	// EligiblePeople returns every person that passes the suppression guard
	// (email and token present; not archived, unsubscribed or bounced),
	// each with their current subscription if any.
	EligiblePeople(ctx context.Context) ([]domain.PersonWithSubscription, error)

	// ActivePeople returns every non-archived person with their current
	// subscription, suppressed or not. Used for list type counts.
	ActivePeople(ctx context.Context) ([]domain.PersonWithSubscription, error)

	// PersonIDsWithEvent returns the people with at least one event of type t
	// recorded against the campaign.
	PersonIDsWithEvent(ctx context.Context, campaignID string, t domain.EventType) ([]string, error)

	// PersonIDsWithEngagementLevel returns the people the store currently
	// buckets into level.
	PersonIDsWithEngagementLevel(ctx context.Context, level domain.EngagementLevel) ([]string, error)
}

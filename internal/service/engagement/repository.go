package engagement

import (
	"context"

	"github.com/rijksuitgaven/mailengine/internal/domain"
)

// Repository defines the event store.
type Repository interface {
	// PersonIDByEmail returns the oldest person with the address, or "" when
	// nobody has it.
	PersonIDByEmail(ctx context.Context, email string) (string, error)

	// InsertEvent stores ev. It returns ErrDuplicateEvent when an event with
	// the same provider message id and type exists.
	InsertEvent(ctx context.Context, ev *domain.CampaignEvent) error
}

// Suppressor applies suppression changes caused by webhook events. It is
// satisfied by *suppression.Service.
type Suppressor interface {
	MarkBounced(ctx context.Context, email string) error
	MarkComplained(ctx context.Context, email string) error
	UnsubscribeContact(ctx context.Context, contactID string) error
}

package suppression

import (
	"context"
	"time"

	"github.com/rijksuitgaven/mailengine/internal/domain"
)

// Repository defines the data access contract for suppression state on
// people records.
type Repository interface {
	// FindByToken returns the person owning the unsubscribe token, or
	// ErrNotFound.
	FindByToken(ctx context.Context, token string) (*domain.Person, error)

	// MarkUnsubscribed sets unsubscribed_at if it is not already set.
	MarkUnsubscribed(ctx context.Context, personID string, at time.Time) error

	// MarkBouncedByEmail sets bounced_at on every not-yet-bounced person with
	// the address and returns the number of rows changed.
	MarkBouncedByEmail(ctx context.Context, email string, at time.Time) (int64, error)

	// MarkUnsubscribedByEmail sets unsubscribed_at on every not-yet-unsubscribed
	// person with the address.
	MarkUnsubscribedByEmail(ctx context.Context, email string, at time.Time) (int64, error)

	// UnsubscribeByContactID sets unsubscribed_at and clears the mirror contact
	// id of the person linked to the external contact.
	UnsubscribeByContactID(ctx context.Context, contactID string, at time.Time) (int64, error)
}

// ContactMirror receives best-effort removals from the external contact
// list. Implementations must not block.
type ContactMirror interface {
	Remove(p domain.Person)
}

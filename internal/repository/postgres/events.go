package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rijksuitgaven/mailengine/internal/domain"
	"github.com/rijksuitgaven/mailengine/internal/service/engagement"
)

// EventRepo implements engagement.Repository against PostgreSQL.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed campaign event repository.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// PersonIDByEmail returns the oldest non-archived person with email, else the
// oldest archived one, else "".
func (r *EventRepo) PersonIDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		SELECT id::text FROM people
		WHERE lower(email) = lower($1)
		ORDER BY archived_at IS NOT NULL, created_at
		LIMIT 1
	`, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("person by email: %w", err)
	}
	return id, nil
}

func (r *EventRepo) InsertEvent(ctx context.Context, ev *domain.CampaignEvent) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO campaign_events
			(campaign_id, person_id, email, event_type, resend_email_id, link_url, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id::text
	`, ev.CampaignID, nullString(ev.PersonID), ev.Email, string(ev.EventType),
		ev.ProviderMessageID, nullString(ev.LinkURL), ev.OccurredAt,
	).Scan(&ev.ID)
	switch {
	case isUniqueViolation(err):
		return engagement.ErrDuplicateEvent
	case isForeignKeyViolation(err):
		return engagement.ErrUnknownCampaign
	case err != nil:
		return fmt.Errorf("insert campaign event: %w", err)
	}
	return nil
}

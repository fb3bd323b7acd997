package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rijksuitgaven/mailengine/internal/domain"
)

// AudienceRepo implements audience.Repository against PostgreSQL.
type AudienceRepo struct{ db *sql.DB }

// NewAudienceRepo creates a Postgres-backed audience repository.
func NewAudienceRepo(db *sql.DB) *AudienceRepo { return &AudienceRepo{db: db} }

// peopleWithSubscription joins every person to their most recent
// subscription row. The filter is appended by the caller.
const peopleWithSubscription = `SELECT ` + personColumns + `,
	s.plan, s.cancelled_at, s.deleted_at, s.end_date, s.grace_ends_at
FROM people p
LEFT JOIN LATERAL (
	SELECT plan, cancelled_at, deleted_at, end_date, grace_ends_at
	FROM subscriptions
	WHERE person_id = p.id
	ORDER BY created_at DESC
	LIMIT 1
) s ON true
WHERE p.archived_at IS NULL`

const suppressionGuard = `
	AND p.email IS NOT NULL AND p.email <> ''
	AND p.unsubscribe_token IS NOT NULL
	AND p.unsubscribed_at IS NULL
	AND p.bounced_at IS NULL`

func (r *AudienceRepo) EligiblePeople(ctx context.Context) ([]domain.PersonWithSubscription, error) {
	return r.queryPeople(ctx, peopleWithSubscription+suppressionGuard+` ORDER BY p.created_at`)
}

func (r *AudienceRepo) ActivePeople(ctx context.Context) ([]domain.PersonWithSubscription, error) {
	return r.queryPeople(ctx, peopleWithSubscription+` ORDER BY p.created_at`)
}

func (r *AudienceRepo) queryPeople(ctx context.Context, query string) ([]domain.PersonWithSubscription, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	defer rows.Close()

	out := []domain.PersonWithSubscription{}
	for rows.Next() {
		var (
			plan                           sql.NullString
			cancelled, deleted, end, grace sql.NullTime
		)
		p, err := scanPerson(rows, &plan, &cancelled, &deleted, &end, &grace)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		item := domain.PersonWithSubscription{Person: *p}
		if plan.Valid {
			item.Subscription = &domain.Subscription{
				PersonID:    p.ID,
				Plan:        domain.Plan(plan.String),
				CancelledAt: timePtr(cancelled),
				DeletedAt:   timePtr(deleted),
				EndDate:     timePtr(end),
				GraceEndsAt: timePtr(grace),
			}
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *AudienceRepo) PersonIDsWithEvent(ctx context.Context, campaignID string, t domain.EventType) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT person_id::text
		FROM campaign_events
		WHERE campaign_id = $1 AND event_type = $2 AND person_id IS NOT NULL
	`, campaignID, string(t))
	if err != nil {
		return nil, fmt.Errorf("people with event: %w", err)
	}
	return scanIDs(rows)
}

func (r *AudienceRepo) PersonIDsWithEngagementLevel(ctx context.Context, level domain.EngagementLevel) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT person_id::text FROM get_engagement_scores() WHERE engagement_level = $1`,
		string(level),
	)
	if err != nil {
		return nil, fmt.Errorf("people with engagement level: %w", err)
	}
	return scanIDs(rows)
}

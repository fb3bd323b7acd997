package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rijksuitgaven/mailengine/internal/domain"
	"github.com/rijksuitgaven/mailengine/internal/service/suppression"
)

// SuppressionRepo implements suppression.Repository against PostgreSQL.
type SuppressionRepo struct{ db *sql.DB }

// NewSuppressionRepo creates a Postgres-backed suppression repository.
func NewSuppressionRepo(db *sql.DB) *SuppressionRepo { return &SuppressionRepo{db: db} }

func (r *SuppressionRepo) FindByToken(ctx context.Context, token string) (*domain.Person, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM people p WHERE p.unsubscribe_token = $1::uuid`,
		token,
	)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, suppression.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by token: %w", err)
	}
	return p, nil
}

func (r *SuppressionRepo) MarkUnsubscribed(ctx context.Context, personID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE people SET unsubscribed_at = $2, updated_at = NOW()
		WHERE id = $1 AND unsubscribed_at IS NULL
	`, personID, at)
	if err != nil {
		return fmt.Errorf("mark unsubscribed: %w", err)
	}
	return nil
}

func (r *SuppressionRepo) MarkBouncedByEmail(ctx context.Context, email string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE people SET bounced_at = $2, updated_at = NOW()
		WHERE lower(email) = lower($1) AND bounced_at IS NULL
	`, email, at)
	if err != nil {
		return 0, fmt.Errorf("mark bounced: %w", err)
	}
	return res.RowsAffected()
}

func (r *SuppressionRepo) MarkUnsubscribedByEmail(ctx context.Context, email string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE people SET unsubscribed_at = $2, updated_at = NOW()
		WHERE lower(email) = lower($1) AND unsubscribed_at IS NULL
	`, email, at)
	if err != nil {
		return 0, fmt.Errorf("mark unsubscribed by email: %w", err)
	}
	return res.RowsAffected()
}

func (r *SuppressionRepo) UnsubscribeByContactID(ctx context.Context, contactID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE people
		SET unsubscribed_at = COALESCE(unsubscribed_at, $2), resend_contact_id = NULL, updated_at = NOW()
		WHERE resend_contact_id = $1
	`, contactID, at)
	if err != nil {
		return 0, fmt.Errorf("unsubscribe by contact: %w", err)
	}
	return res.RowsAffected()
}

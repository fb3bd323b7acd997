package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rijksuitgaven/mailengine/internal/contactsync"
	"github.com/rijksuitgaven/mailengine/internal/domain"
)

// ContactRepo implements contactsync.Store against PostgreSQL.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact mirror store.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

func (r *ContactRepo) GetPerson(ctx context.Context, id string) (*domain.Person, error) {
	p, err := getPerson(ctx, r.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contactsync.ErrPersonNotFound
	}
	return p, err
}

func (r *ContactRepo) SetContactID(ctx context.Context, personID, contactID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE people SET resend_contact_id = $2, updated_at = NOW() WHERE id = $1`,
		personID, contactID,
	)
	if err != nil {
		return fmt.Errorf("set contact id: %w", err)
	}
	return nil
}

func (r *ContactRepo) ClearContactID(ctx context.Context, personID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE people SET resend_contact_id = NULL, updated_at = NOW() WHERE id = $1`,
		personID,
	)
	if err != nil {
		return fmt.Errorf("clear contact id: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rijksuitgaven/mailengine/internal/domain"
)

// personColumns is the select list scanPerson expects, qualified with the
// alias p.
const personColumns = `p.id::text, COALESCE(p.email, ''), COALESCE(p.first_name, ''),
	COALESCE(p.last_name, ''), COALESCE(p.unsubscribe_token::text, ''), p.pipeline_stage,
	COALESCE(p.resend_contact_id, ''), p.bounced_at, p.unsubscribed_at, p.archived_at, p.created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(s scanner, extra ...any) (*domain.Person, error) {
	var (
		p                               domain.Person
		stage                           string
		bounced, unsubscribed, archived sql.NullTime
	)
	dest := []any{
		&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.UnsubscribeToken, &stage,
		&p.ResendContactID, &bounced, &unsubscribed, &archived, &p.CreatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	p.PipelineStage = domain.PipelineStage(stage)
	p.BouncedAt = timePtr(bounced)
	p.UnsubscribedAt = timePtr(unsubscribed)
	p.ArchivedAt = timePtr(archived)
	return &p, nil
}

// getPerson loads one person by id. It returns sql.ErrNoRows unwrapped so
// callers can map it to their own sentinel.
func getPerson(ctx context.Context, db *sql.DB, id string) (*domain.Person, error) {
	p, err := scanPerson(db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people p WHERE p.id = $1`, id))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, err
}

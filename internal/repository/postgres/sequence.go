package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rijksuitgaven/mailengine/internal/domain"
	"github.com/rijksuitgaven/mailengine/internal/service/sequence"
)

// addStepAttempts bounds the retries when two admins append a step to the
// same sequence at once and collide on step_order.
const addStepAttempts = 3

// SequenceRepo implements sequence.Repository against PostgreSQL.
type SequenceRepo struct{ db *sql.DB }

// NewSequenceRepo creates a Postgres-backed sequence repository.
func NewSequenceRepo(db *sql.DB) *SequenceRepo { return &SequenceRepo{db: db} }

const sequenceColumns = `id::text, name, COALESCE(description, ''), status, send_time, created_at`

func scanSequence(s scanner) (*domain.Sequence, error) {
	var seq domain.Sequence
	var status string
	if err := s.Scan(&seq.ID, &seq.Name, &seq.Description, &status, &seq.SendTime, &seq.CreatedAt); err != nil {
		return nil, err
	}
	seq.Status = domain.SequenceStatus(status)
	return &seq, nil
}

func (r *SequenceRepo) GetSequence(ctx context.Context, id string) (*domain.Sequence, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sequenceColumns+` FROM email_sequences WHERE id = $1`, id)
	seq, err := scanSequence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sequence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sequence: %w", err)
	}
	return seq, nil
}

func (r *SequenceRepo) ActiveSequences(ctx context.Context) ([]domain.Sequence, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sequenceColumns+` FROM email_sequences WHERE status = 'active' ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("active sequences: %w", err)
	}
	defer rows.Close()

	var out []domain.Sequence
	for rows.Next() {
		seq, err := scanSequence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sequence: %w", err)
		}
		out = append(out, *seq)
	}
	return out, rows.Err()
}

func (r *SequenceRepo) Steps(ctx context.Context, sequenceID string) ([]domain.Step, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id::text, sequence_id::text, step_order, delay_days, subject, heading,
		       COALESCE(preheader, ''), body, COALESCE(cta_text, ''), COALESCE(cta_url, ''), created_at
		FROM email_sequence_steps
		WHERE sequence_id = $1
		ORDER BY step_order
	`, sequenceID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var out []domain.Step
	for rows.Next() {
		var st domain.Step
		if err := rows.Scan(&st.ID, &st.SequenceID, &st.StepOrder, &st.DelayDays, &st.Subject, &st.Heading,
			&st.Preheader, &st.Body, &st.CTAText, &st.CTAURL, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *SequenceRepo) AddStep(ctx context.Context, step *domain.Step) error {
	var err error
	for attempt := 0; attempt < addStepAttempts; attempt++ {
		err = r.db.QueryRowContext(ctx, `
			INSERT INTO email_sequence_steps
				(sequence_id, step_order, delay_days, subject, heading, preheader, body, cta_text, cta_url)
			SELECT $1, COALESCE(MAX(step_order), 0) + 1, $2, $3, $4, $5, $6, $7, $8
			FROM email_sequence_steps WHERE sequence_id = $1
			RETURNING id::text, step_order, created_at
		`, step.SequenceID, step.DelayDays, step.Subject, step.Heading, nullString(step.Preheader),
			step.Body, nullString(step.CTAText), nullString(step.CTAURL),
		).Scan(&step.ID, &step.StepOrder, &step.CreatedAt)
		if !isUniqueViolation(err) {
			break
		}
	}
	if isForeignKeyViolation(err) {
		return sequence.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

func (r *SequenceRepo) ActiveEnrollments(ctx context.Context, sequenceID string) ([]domain.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id::text, sequence_id::text, person_id::text, current_step, status,
		       enrolled_at, completed_at, cancelled_at
		FROM email_sequence_enrollments
		WHERE sequence_id = $1 AND status = 'active'
		ORDER BY enrolled_at, id
	`, sequenceID)
	if err != nil {
		return nil, fmt.Errorf("active enrollments: %w", err)
	}
	defer rows.Close()

	var out []domain.Enrollment
	for rows.Next() {
		var (
			e                    domain.Enrollment
			status               string
			completed, cancelled sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.SequenceID, &e.PersonID, &e.CurrentStep, &status,
			&e.EnrolledAt, &completed, &cancelled); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		e.Status = domain.EnrollmentStatus(status)
		e.CompletedAt = timePtr(completed)
		e.CancelledAt = timePtr(cancelled)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SequenceRepo) CreateEnrollment(ctx context.Context, e *domain.Enrollment) error {
	if e.Status == "" {
		e.Status = domain.EnrollmentActive
	}
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO email_sequence_enrollments (sequence_id, person_id, current_step, status, enrolled_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text
	`, e.SequenceID, e.PersonID, e.CurrentStep, string(e.Status), e.EnrolledAt).Scan(&e.ID)
	switch {
	case isUniqueViolation(err):
		return sequence.ErrAlreadyEnrolled
	case isForeignKeyViolation(err):
		return sequence.ErrPersonNotFound
	case err != nil:
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

func (r *SequenceRepo) AdvanceStep(ctx context.Context, enrollmentID string, stepOrder int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE email_sequence_enrollments SET current_step = GREATEST(current_step, $2) WHERE id = $1`,
		enrollmentID, stepOrder,
	)
	if err != nil {
		return fmt.Errorf("advance enrollment: %w", err)
	}
	return nil
}

func (r *SequenceRepo) Complete(ctx context.Context, enrollmentID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_sequence_enrollments SET status = 'completed', completed_at = $2
		WHERE id = $1 AND status = 'active'
	`, enrollmentID, at)
	if err != nil {
		return fmt.Errorf("complete enrollment: %w", err)
	}
	return nil
}

func (r *SequenceRepo) Cancel(ctx context.Context, enrollmentID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_sequence_enrollments SET status = 'cancelled', cancelled_at = $2
		WHERE id = $1 AND status = 'active'
	`, enrollmentID, at)
	if err != nil {
		return fmt.Errorf("cancel enrollment: %w", err)
	}
	return nil
}

func (r *SequenceRepo) HasSend(ctx context.Context, enrollmentID, stepID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM email_sequence_sends WHERE enrollment_id = $1 AND step_id = $2)`,
		enrollmentID, stepID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has send: %w", err)
	}
	return exists, nil
}

func (r *SequenceRepo) RecordSend(ctx context.Context, s *domain.SequenceSend) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO email_sequence_sends
			(enrollment_id, step_id, person_id, status, provider_message_id, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text, created_at
	`, s.EnrollmentID, s.StepID, s.PersonID, string(s.Status),
		nullString(s.ProviderMessageID), nullString(s.ErrorMessage),
	).Scan(&s.ID, &s.CreatedAt)
	if isUniqueViolation(err) {
		return sequence.ErrDuplicateSend
	}
	if err != nil {
		return fmt.Errorf("record send: %w", err)
	}
	return nil
}

func (r *SequenceRepo) GetPerson(ctx context.Context, id string) (*domain.Person, error) {
	p, err := getPerson(ctx, r.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sequence.ErrPersonNotFound
	}
	return p, err
}

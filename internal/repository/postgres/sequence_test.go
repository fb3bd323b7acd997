package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rijksuitgaven/mailengine/internal/domain"
	"github.com/rijksuitgaven/mailengine/internal/service/sequence"
)

var sequenceCols = []string{"id", "name", "description", "status", "send_time", "created_at"}

func TestSequenceRepo_GetSequence(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSequenceRepo(db)

	mock.ExpectQuery(`FROM email_sequences WHERE id = \$1`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(sequenceCols).AddRow("s1", "Welkom", "", "active", "08:30", created))
	mock.ExpectQuery(`FROM email_sequences WHERE id = \$1`).
		WithArgs("s2").
		WillReturnError(sql.ErrNoRows)

	seq, err := repo.GetSequence(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SequenceActive, seq.Status)
	assert.Equal(t, 8, seq.SendHour())

	_, err = repo.GetSequence(context.Background(), "s2")
	assert.ErrorIs(t, err, sequence.ErrNotFound)
}

func TestSequenceRepo_Steps(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSequenceRepo(db)

	cols := []string{"id", "sequence_id", "step_order", "delay_days", "subject", "heading",
		"preheader", "body", "cta_text", "cta_url", "created_at"}
	mock.ExpectQuery(`FROM email_sequence_steps\s+WHERE sequence_id = \$1\s+ORDER BY step_order`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("st1", "s1", 1, 0, "Hallo", "Welkom", "", "Body", "", "", created).
			AddRow("st2", "s1", 2, 3, "Tips", "Tips", "pre", "Body", "Lees", "https://rijksuitgaven.nl", created))

	steps, err := repo.Steps(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 3, steps[1].DelayDays)
	assert.Equal(t, "https://rijksuitgaven.nl", steps[1].CTAURL)
}

func TestSequenceRepo_AddStepRetriesOnOrderCollision(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSequenceRepo(db)

	insert := `INSERT INTO email_sequence_steps.*COALESCE\(MAX\(step_order\), 0\) \+ 1`
	mock.ExpectQuery(insert).WillReturnError(uniqueViolation())
	mock.ExpectQuery(insert).
		WillReturnRows(sqlmock.NewRows([]string{"id", "step_order", "created_at"}).AddRow("st3", 3, created))

	step := &domain.Step{SequenceID: "s1", Subject: "S", Heading: "H", Body: "B"}
	require.NoError(t, repo.AddStep(context.Background(), step))
	assert.Equal(t, "st3", step.ID)
	assert.Equal(t, 3, step.StepOrder)
}

func TestSequenceRepo_CreateEnrollment(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSequenceRepo(db)

	insert := `INSERT INTO email_sequence_enrollments`
	mock.ExpectQuery(insert).
		WithArgs("s1", "p1", 0, "active", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("e1"))
	mock.ExpectQuery(insert).WillReturnError(uniqueViolation())
	mock.ExpectQuery(insert).WillReturnError(foreignKeyViolation())

	e := &domain.Enrollment{SequenceID: "s1", PersonID: "p1"}
	require.NoError(t, repo.CreateEnrollment(context.Background(), e))
	assert.Equal(t, "e1", e.ID)
	assert.Equal(t, domain.EnrollmentActive, e.Status)
	assert.False(t, e.EnrolledAt.IsZero())

	err := repo.CreateEnrollment(context.Background(), &domain.Enrollment{SequenceID: "s1", PersonID: "p1"})
	assert.ErrorIs(t, err, sequence.ErrAlreadyEnrolled)

	err = repo.CreateEnrollment(context.Background(), &domain.Enrollment{SequenceID: "s1", PersonID: "gone"})
	assert.ErrorIs(t, err, sequence.ErrPersonNotFound)
}

func TestSequenceRepo_ActiveEnrollments(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSequenceRepo(db)

	cols := []string{"id", "sequence_id", "person_id", "current_step", "status", "enrolled_at", "completed_at", "cancelled_at"}
	mock.ExpectQuery(`FROM email_sequence_enrollments\s+WHERE sequence_id = \$1 AND status = 'active'`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("e1", "s1", "p1", 2, "active", created, nil, nil))

	out, err := repo.ActiveEnrollments(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].CurrentStep)
	assert.Nil(t, out[0].CompletedAt)
}

func TestSequenceRepo_Transitions(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSequenceRepo(db)

	mock.ExpectExec(`SET current_step = GREATEST\(current_step, \$2\)`).
		WithArgs("e1", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SET status = 'completed', completed_at = \$2\s+WHERE id = \$1 AND status = 'active'`).
		WithArgs("e1", created).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SET status = 'cancelled', cancelled_at = \$2\s+WHERE id = \$1 AND status = 'active'`).
		WithArgs("e2", created).WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, repo.AdvanceStep(ctx, "e1", 2))
	require.NoError(t, repo.Complete(ctx, "e1", created))
	require.NoError(t, repo.Cancel(ctx, "e2", created))
}

func TestSequenceRepo_Sends(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSequenceRepo(db)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM email_sequence_sends`).
		WithArgs("e1", "st1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`INSERT INTO email_sequence_sends`).
		WithArgs("e1", "st2", "p1", "sent", "msg_1", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("snd1", created))
	mock.ExpectQuery(`INSERT INTO email_sequence_sends`).WillReturnError(uniqueViolation())

	ctx := context.Background()
	ok, err := repo.HasSend(ctx, "e1", "st1")
	require.NoError(t, err)
	assert.True(t, ok)

	send := &domain.SequenceSend{EnrollmentID: "e1", StepID: "st2", PersonID: "p1", Status: domain.SendSent, ProviderMessageID: "msg_1"}
	require.NoError(t, repo.RecordSend(ctx, send))
	assert.Equal(t, "snd1", send.ID)

	err = repo.RecordSend(ctx, send)
	assert.ErrorIs(t, err, sequence.ErrDuplicateSend)
}

func TestSequenceRepo_GetPersonNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSequenceRepo(db)

	mock.ExpectQuery(`FROM people p WHERE p.id = \$1`).WithArgs("p9").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetPerson(context.Background(), "p9")
	assert.ErrorIs(t, err, sequence.ErrPersonNotFound)
}

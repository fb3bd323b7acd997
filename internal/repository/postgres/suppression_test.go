package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rijksuitgaven/mailengine/internal/domain"
	"github.com/rijksuitgaven/mailengine/internal/service/suppression"
)

const token = "5a1d7c2e-9b3f-4c8a-a1e2-7f6d5c4b3a21"

func TestSuppressionRepo_FindByToken(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSuppressionRepo(db)

	unsub := created.Add(time.Hour)
	mock.ExpectQuery(`FROM people p WHERE p.unsubscribe_token = \$1::uuid`).
		WithArgs(token).
		WillReturnRows(sqlmock.NewRows(personCols).AddRow(
			"p1", "ann@example.nl", "Ann", "", token, "nieuw", "ct_1", nil, unsub, nil, created,
		))

	p, err := repo.FindByToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, domain.StageNew, p.PipelineStage)
	assert.Equal(t, "ct_1", p.ResendContactID)
	assert.Nil(t, p.BouncedAt)
	require.NotNil(t, p.UnsubscribedAt)
	assert.True(t, unsub.Equal(*p.UnsubscribedAt))
}

func TestSuppressionRepo_FindByTokenNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSuppressionRepo(db)

	mock.ExpectQuery(`FROM people p`).WithArgs(token).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByToken(context.Background(), token)
	assert.ErrorIs(t, err, suppression.ErrNotFound)
}

func TestSuppressionRepo_MarkUnsubscribedKeepsFirstTimestamp(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSuppressionRepo(db)

	mock.ExpectExec(`UPDATE people SET unsubscribed_at = \$2.*AND unsubscribed_at IS NULL`).
		WithArgs("p1", created).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkUnsubscribed(context.Background(), "p1", created))
}

func TestSuppressionRepo_ByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSuppressionRepo(db)

	mock.ExpectExec(`UPDATE people SET bounced_at = \$2.*lower\(email\) = lower\(\$1\) AND bounced_at IS NULL`).
		WithArgs("Ann@Example.nl", created).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE people SET unsubscribed_at = \$2.*lower\(email\) = lower\(\$1\)`).
		WithArgs("ann@example.nl", created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.MarkBouncedByEmail(context.Background(), "Ann@Example.nl", created)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.MarkUnsubscribedByEmail(context.Background(), "ann@example.nl", created)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSuppressionRepo_UnsubscribeByContactID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSuppressionRepo(db)

	mock.ExpectExec(`unsubscribed_at = COALESCE\(unsubscribed_at, \$2\), resend_contact_id = NULL`).
		WithArgs("ct_1", created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.UnsubscribeByContactID(context.Background(), "ct_1", created)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rijksuitgaven/mailengine/internal/contactsync"
	"github.com/rijksuitgaven/mailengine/internal/domain"
)

func TestContactRepo(t *testing.T) {
	db, mock := newMock(t)
	repo := NewContactRepo(db)

	mock.ExpectExec(`UPDATE people SET resend_contact_id = \$2`).
		WithArgs("p1", "ct_1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE people SET resend_contact_id = NULL`).
		WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM people p WHERE p.id = \$1`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(personCols).AddRow(
			"p1", "ann@example.nl", "Ann", "Jansen", token, "in_gesprek", "", nil, nil, nil, created,
		))
	mock.ExpectQuery(`FROM people p WHERE p.id = \$1`).WithArgs("p9").WillReturnError(sql.ErrNoRows)

	ctx := context.Background()
	require.NoError(t, repo.SetContactID(ctx, "p1", "ct_1"))
	require.NoError(t, repo.ClearContactID(ctx, "p1"))

	p, err := repo.GetPerson(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Jansen", p.LastName)
	assert.Equal(t, domain.StageInConversation, p.PipelineStage)

	_, err = repo.GetPerson(ctx, "p9")
	assert.ErrorIs(t, err, contactsync.ErrPersonNotFound)
}

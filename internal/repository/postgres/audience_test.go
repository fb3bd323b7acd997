package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rijksuitgaven/mailengine/internal/domain"
)

func TestAudienceRepo_EligiblePeople(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAudienceRepo(db)

	end := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	cols := append(append([]string{}, personCols...), "plan", "cancelled_at", "deleted_at", "end_date", "grace_ends_at")
	mock.ExpectQuery(`LEFT JOIN LATERAL.*p.unsubscribed_at IS NULL\s+AND p.bounced_at IS NULL`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("p1", "a@example.nl", "Ann", "", token, "gewonnen", "", nil, nil, nil, created,
				"yearly", nil, nil, end, nil).
			AddRow("p2", "b@example.nl", "", "", token, "nieuw", "", nil, nil, nil, created,
				nil, nil, nil, nil, nil))

	people, err := repo.EligiblePeople(context.Background())
	require.NoError(t, err)
	require.Len(t, people, 2)

	require.NotNil(t, people[0].Subscription)
	assert.Equal(t, domain.PlanYearly, people[0].Subscription.Plan)
	assert.Equal(t, "p1", people[0].Subscription.PersonID)
	require.NotNil(t, people[0].Subscription.EndDate)
	assert.True(t, end.Equal(*people[0].Subscription.EndDate))
	assert.Nil(t, people[0].Subscription.GraceEndsAt)

	assert.Equal(t, domain.StageNew, people[1].Person.PipelineStage)
	assert.Nil(t, people[1].Subscription)
}

func TestAudienceRepo_ActivePeopleSkipsSuppressionGuard(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAudienceRepo(db)

	mock.ExpectQuery(`WHERE p.archived_at IS NULL ORDER BY p.created_at`).
		WillReturnRows(sqlmock.NewRows(personCols))

	people, err := repo.ActivePeople(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, people)
	assert.Empty(t, people)
}

func TestAudienceRepo_PersonIDs(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAudienceRepo(db)

	mock.ExpectQuery(`SELECT DISTINCT person_id::text\s+FROM campaign_events`).
		WithArgs("c1", "opened").
		WillReturnRows(sqlmock.NewRows([]string{"person_id"}).AddRow("p1").AddRow("p2"))
	mock.ExpectQuery(`FROM get_engagement_scores\(\) WHERE engagement_level = \$1`).
		WithArgs("cold").
		WillReturnRows(sqlmock.NewRows([]string{"person_id"}).AddRow("p3"))

	ids, err := repo.PersonIDsWithEvent(context.Background(), "c1", domain.EventOpened)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)

	ids, err = repo.PersonIDsWithEngagementLevel(context.Background(), domain.LevelCold)
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, ids)
}

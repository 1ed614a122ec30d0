package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/models"
)

func newFeedbackRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestFeedbackRepositoryListPublicStatuses(t *testing.T) {
	db, mock, cleanup := newFeedbackRepoMock(t)
	defer cleanup()
	repo := NewFeedbackRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM feedback WHERE 1=1 AND status IN ($1, $2)")).
		WithArgs(models.FeedbackReviewed, models.FeedbackResolved).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	rows := sqlmock.NewRows([]string{"id", "user_id", "feedback_type", "subject", "message", "rating", "is_anonymous", "status", "created_at", "updated_at"}).
		AddRow("fb-1", "user-1", models.FeedbackSuggestion, "More examples", "Please add worked examples", 4, false, models.FeedbackReviewed, time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM feedback WHERE 1=1 AND status IN (.+) ORDER BY created_at DESC").
		WithArgs(models.FeedbackReviewed, models.FeedbackResolved).
		WillReturnRows(rows)

	entries, pagination, err := repo.List(context.Background(), models.FeedbackFilter{
		Statuses: []models.FeedbackStatus{models.FeedbackReviewed, models.FeedbackResolved},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 1, pagination.TotalCount)
	require.Equal(t, models.FeedbackReviewed, entries[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedbackRepositoryCreateDefaultsToPending(t *testing.T) {
	db, mock, cleanup := newFeedbackRepoMock(t)
	defer cleanup()
	repo := NewFeedbackRepository(db)

	mock.ExpectExec("INSERT INTO feedback").
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.Feedback{UserID: "user-1", Type: models.FeedbackGeneral, Subject: "Hi", Message: "Great course"}
	err := repo.Create(context.Background(), entry)
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)
	require.Equal(t, models.FeedbackPending, entry.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedbackRepositoryUpdateStatusMissingRow(t *testing.T) {
	db, mock, cleanup := newFeedbackRepoMock(t)
	defer cleanup()
	repo := NewFeedbackRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE feedback SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(models.FeedbackResolved, sqlmock.AnyArg(), "fb-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "fb-missing", models.FeedbackResolved)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dont-forgetter-api/internal/models"
)

var eventRowColumns = []string{"id", "user_id", "category", "title", "date", "time", "utc_offset", "notice_time", "interval", "notification_type", "recipient",
	"custom_email_subject", "custom_message", "custom_variables", "info", "count", "notification_retries_left", "utc_timestamp", "created_at", "updated_at"}

func TestEventPatchUpdatesOnlyGivenFields(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	date, clock := "2020-01-01", "10:30"
	ts := int64(1577874600)
	retries := 3
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE events SET date = $1, "time" = $2, utc_timestamp = $3, notification_retries_left = $4, updated_at = $5 WHERE id = $6`)).
		WithArgs(date, clock, ts, retries, sqlmock.AnyArg(), "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Patch(context.Background(), "e1", UpdateEventParams{Date: &date, Time: &clock, UTCTimestamp: &ts, NotificationRetriesLeft: &retries})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventPatchMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	retries := 0
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET notification_retries_left = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(retries, sqlmock.AnyArg(), "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Patch(context.Background(), "gone", UpdateEventParams{NotificationRetriesLeft: &retries})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventPatchGuardsLoadedVersion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	loaded := time.Date(2024, 1, 1, 9, 0, 0, 123456000, time.UTC)
	clock := "10:30"
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE events SET "time" = $1, updated_at = $2 WHERE id = $3 AND updated_at = $4`)).
		WithArgs(clock, sqlmock.AnyArg(), "e1", loaded).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Patch(context.Background(), "e1", UpdateEventParams{Time: &clock, UnmodifiedSince: loaded})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM events WHERE id = $1`)).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.Delete(context.Background(), "gone", time.Time{}))

	loaded := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM events WHERE id = $1 AND updated_at = $2`)).
		WithArgs("e1", loaded).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "e1", loaded), sql.ErrNoRows)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM events WHERE id = $1 AND updated_at = $2`)).
		WithArgs("e2", loaded).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Delete(context.Background(), "e2", loaded))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventPatchNoFieldsIsNoop(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	require.NoError(t, repo.Patch(context.Background(), "e1", UpdateEventParams{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListExpired(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(eventRowColumns).
		AddRow("e1", "u1", "other", "Dentist", "2024-01-01", "10:00", "+2", "-", "-", "email", "u@example.com",
			nil, nil, nil, nil, nil, 3, int64(1704096000), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + eventColumns + " FROM events WHERE utc_timestamp < $1")).
		WithArgs(int64(1704096060)).
		WillReturnRows(rows)

	events, err := repo.ListExpired(context.Background(), 1704096060)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.NotificationEmail, events[0].NotificationType)
	assert.Nil(t, events[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListEventsWithFilter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + eventColumns + " FROM events WHERE user_id = $1 AND (category = $2) ORDER BY utc_timestamp ASC LIMIT 5")).
		WithArgs("u1", "work").
		WillReturnRows(sqlmock.NewRows(eventRowColumns))

	events, err := repo.List(context.Background(), "u1", "category = $2", []interface{}{"work"}, 5)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEvent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.Event{UserID: "u1", Title: "Gym", Date: "2024-01-01", Time: "10:00", UTCOffset: "+0", NoticeTime: "-", Interval: "1d"}
	require.NoError(t, repo.Create(context.Background(), event))
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteEventForUserNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEventRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE id = $1 AND user_id = $2")).
		WithArgs("e1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.DeleteForUser(context.Background(), "e1", "u2"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

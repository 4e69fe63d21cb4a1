package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dont-forgetter-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userRowColumns = []string{"id", "email", "username", "password_hash", "phone_number", "email_notifications_left", "sms_notifications_left", "premium_member", "created_at", "updated_at"}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("1", "user@example.com", "user", "hash", "", 100, 10, false, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+userColumns+" FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("user@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "User@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.Equal(t, 100, user.EmailNotificationsLeft)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserWritesSettingsInTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO user_settings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user := &models.User{Email: "New@Example.com", Username: "new", PasswordHash: "hash"}
	settings := &models.UserSettings{DefaultNotificationType: models.NotificationEmail, DefaultTime: "10:00", DefaultUTCOffset: "+0"}
	require.NoError(t, repo.Create(context.Background(), user, settings))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, user.ID, settings.UserID)
	assert.Equal(t, "new@example.com", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementQuota(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET sms_notifications_left = sms_notifications_left - 1, updated_at = $2 WHERE id = $1 AND sms_notifications_left > 0 RETURNING sms_notifications_left")).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"sms_notifications_left"}).AddRow(0))

	remaining, ok, err := repo.DecrementQuota(context.Background(), "u1", models.NotificationSMS)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementQuotaAlreadyExhausted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("UPDATE users SET email_notifications_left").
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"email_notifications_left"}))

	_, ok, err := repo.DecrementQuota(context.Background(), "u1", models.NotificationEmail)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetQuotas(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET email_notifications_left = $1, sms_notifications_left = $2, updated_at = $3")).
		WithArgs(100, 10, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.ResetQuotas(context.Background(), 100, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "1", UserID: "u1", Token: "token", ExpiresAt: time.Now(), CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

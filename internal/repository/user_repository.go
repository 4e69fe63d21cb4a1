package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dont-forgetter-api/internal/models"
)

const userColumns = `id, email, username, password_hash, phone_number, email_notifications_left, sms_notifications_left, premium_member, created_at, updated_at`

var quotaColumns = map[models.NotificationType]string{
	models.NotificationEmail: "email_notifications_left",
	models.NotificationSMS:   "sms_notifications_left",
}

// UserRepository provides database access for accounts, settings, quotas and sessions.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(email)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// Create inserts a user and its settings row in one transaction.
func (r *UserRepository) Create(ctx context.Context, user *models.User, settings *models.UserSettings) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = strings.ToLower(user.Email)
	settings.UserID = user.ID
	settings.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertUser = `INSERT INTO users (` + userColumns + `) VALUES (:id, :email, :username, :password_hash, :phone_number, :email_notifications_left, :sms_notifications_left, :premium_member, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertUser, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	const insertSettings = `INSERT INTO user_settings (user_id, default_notification_type, default_time, default_utc_offset, sms_sender_name, updated_at) VALUES (:user_id, :default_notification_type, :default_time, :default_utc_offset, :sms_sender_name, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertSettings, settings); err != nil {
		return fmt.Errorf("create user settings: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}
	return nil
}

// UpdateProfile updates the username and phone number.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET username = :username, phone_number = :phone_number, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	return expectAffected(res, "update user profile")
}

// GetSettings returns the settings row of a user.
func (r *UserRepository) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	const query = `SELECT user_id, default_notification_type, default_time, default_utc_offset, sms_sender_name, updated_at FROM user_settings WHERE user_id = $1`
	var settings models.UserSettings
	if err := r.db.GetContext(ctx, &settings, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get user settings: %w", err)
	}
	return &settings, nil
}

// UpdateSettings overwrites the settings row of a user.
func (r *UserRepository) UpdateSettings(ctx context.Context, settings *models.UserSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	const query = `UPDATE user_settings SET default_notification_type = :default_notification_type, default_time = :default_time,
default_utc_offset = :default_utc_offset, sms_sender_name = :sms_sender_name, updated_at = :updated_at WHERE user_id = :user_id`
	res, err := r.db.NamedExecContext(ctx, query, settings)
	if err != nil {
		return fmt.Errorf("update user settings: %w", err)
	}
	return expectAffected(res, "update user settings")
}

// DecrementQuota atomically takes one notification from the user's allowance for the channel.
// It returns the remaining count and false when the counter was already 0.
func (r *UserRepository) DecrementQuota(ctx context.Context, userID string, channel models.NotificationType) (int, bool, error) {
	column, ok := quotaColumns[channel]
	if !ok {
		return 0, false, fmt.Errorf("decrement quota: unknown channel %q", channel)
	}
	query := fmt.Sprintf(`UPDATE users SET %[1]s = %[1]s - 1, updated_at = $2 WHERE id = $1 AND %[1]s > 0 RETURNING %[1]s`, column)
	var remaining int
	if err := r.db.GetContext(ctx, &remaining, query, userID, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("decrement quota: %w", err)
	}
	return remaining, true, nil
}

// ResetQuotas sets both counters of every user to the given allotments.
func (r *UserRepository) ResetQuotas(ctx context.Context, email, sms int) (int64, error) {
	const query = `UPDATE users SET email_notifications_left = $1, sms_notifications_left = $2, updated_at = $3`
	res, err := r.db.ExecContext(ctx, query, email, sms, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("reset quotas: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset quotas: %w", err)
	}
	return n, nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent) VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

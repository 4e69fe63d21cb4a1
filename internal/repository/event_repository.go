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

const eventColumns = `id, user_id, category, title, date, "time", utc_offset, notice_time, "interval", notification_type, recipient,
custom_email_subject, custom_message, custom_variables, info, count, notification_retries_left, utc_timestamp, created_at, updated_at`

// EventFilterColumns lists the fields accepted by the event list filter.
var EventFilterColumns = map[string]string{
	"id":                "id",
	"category":          "category",
	"title":             "title",
	"date":              "date",
	"time":              `"time"`,
	"utc_offset":        "utc_offset",
	"notice_time":       "notice_time",
	"interval":          `"interval"`,
	"notification_type": "notification_type",
	"recipient":         "recipient",
	"info":              "info",
	"utc_timestamp":     "utc_timestamp",
}

// EventRepository persists events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := stamp()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	const query = `INSERT INTO events (` + eventColumns + `)
VALUES (:id, :user_id, :category, :title, :date, :time, :utc_offset, :notice_time, :interval, :notification_type, :recipient,
:custom_email_subject, :custom_message, :custom_variables, :info, :count, :notification_retries_left, :utc_timestamp, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetByID returns an event regardless of owner. sql.ErrNoRows is returned unwrapped.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

// GetForUser returns an event owned by userID.
func (r *EventRepository) GetForUser(ctx context.Context, id, userID string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 AND user_id = $2`
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

// Update rewrites every writable column of an owned event.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = stamp()
	const query = `UPDATE events SET category = :category, title = :title, date = :date, "time" = :time, utc_offset = :utc_offset,
notice_time = :notice_time, "interval" = :interval, notification_type = :notification_type, recipient = :recipient,
custom_email_subject = :custom_email_subject, custom_message = :custom_message, custom_variables = :custom_variables,
info = :info, count = :count, notification_retries_left = :notification_retries_left, utc_timestamp = :utc_timestamp,
updated_at = :updated_at WHERE id = :id AND user_id = :user_id`
	res, err := r.db.NamedExecContext(ctx, query, event)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return expectAffected(res, "update event")
}

// UpdateEventParams defines the fields the background pipeline may change. Nil fields are untouched.
// A non-zero UnmodifiedSince restricts the update to the row version that was loaded.
type UpdateEventParams struct {
	Date                    *string
	Time                    *string
	UTCTimestamp            *int64
	Count                   *int
	NotificationRetriesLeft *int
	UnmodifiedSince         time.Time
}

// Patch applies a partial update in a single statement. sql.ErrNoRows is returned when the
// event no longer exists or was changed after UnmodifiedSince.
func (r *EventRepository) Patch(ctx context.Context, id string, params UpdateEventParams) error {
	set := make([]string, 0, 6)
	args := make([]interface{}, 0, 7)
	argPos := 1

	if params.Date != nil {
		set = append(set, fmt.Sprintf("date = $%d", argPos))
		args = append(args, *params.Date)
		argPos++
	}
	if params.Time != nil {
		set = append(set, fmt.Sprintf(`"time" = $%d`, argPos))
		args = append(args, *params.Time)
		argPos++
	}
	if params.UTCTimestamp != nil {
		set = append(set, fmt.Sprintf("utc_timestamp = $%d", argPos))
		args = append(args, *params.UTCTimestamp)
		argPos++
	}
	if params.Count != nil {
		set = append(set, fmt.Sprintf("count = $%d", argPos))
		args = append(args, *params.Count)
		argPos++
	}
	if params.NotificationRetriesLeft != nil {
		set = append(set, fmt.Sprintf("notification_retries_left = $%d", argPos))
		args = append(args, *params.NotificationRetriesLeft)
		argPos++
	}

	if len(set) == 0 {
		return nil
	}

	set = append(set, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, stamp())
	argPos++

	query := fmt.Sprintf("UPDATE events SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)
	if !params.UnmodifiedSince.IsZero() {
		argPos++
		query += fmt.Sprintf(" AND updated_at = $%d", argPos)
		args = append(args, params.UnmodifiedSince)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("patch event: %w", err)
	}
	return expectAffected(res, "patch event")
}

// Delete removes an event. A non-zero unmodifiedSince limits the delete to the loaded row version
// and turns a miss into sql.ErrNoRows; otherwise deleting a missing event is not an error.
func (r *EventRepository) Delete(ctx context.Context, id string, unmodifiedSince time.Time) error {
	if unmodifiedSince.IsZero() {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		return nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1 AND updated_at = $2`, id, unmodifiedSince)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return expectAffected(res, "delete event")
}

// DeleteForUser removes an owned event, returning sql.ErrNoRows when nothing matched.
func (r *EventRepository) DeleteForUser(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return expectAffected(res, "delete event")
}

// ListExpired returns every event whose utc_timestamp is strictly before now.
func (r *EventRepository) ListExpired(ctx context.Context, now int64) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE utc_timestamp < $1`
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, now); err != nil {
		return nil, fmt.Errorf("list expired events: %w", err)
	}
	return events, nil
}

// List returns a user's events ordered by expiry. where is an optional SQL fragment whose
// placeholders start at $2.
func (r *EventRepository) List(ctx context.Context, userID, where string, args []interface{}, limit int) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE user_id = $1`
	if where != "" {
		query += " AND (" + where + ")"
	}
	query += fmt.Sprintf(" ORDER BY utc_timestamp ASC LIMIT %d", limit)

	params := append([]interface{}{userID}, args...)
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, params...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// stamp is truncated to the microsecond precision of timestamptz so a loaded updated_at
// compares equal to the value written.
func stamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func expectAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

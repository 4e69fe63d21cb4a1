package models

import "time"

// DefaultCategory is used when an event or note is saved without one.
const DefaultCategory = "other"

// Event is a scheduled reminder. UTCTimestamp is the expiry key scanned by the heartbeat and
// is derived from Date, Time, UTCOffset and NoticeTime on every save.
type Event struct {
	ID                      string           `db:"id" json:"id"`
	UserID                  string           `db:"user_id" json:"user_id"`
	Category                string           `db:"category" json:"category"`
	Title                   string           `db:"title" json:"title"`
	Date                    string           `db:"date" json:"date"`
	Time                    string           `db:"time" json:"time"`
	UTCOffset               string           `db:"utc_offset" json:"utc_offset"`
	NoticeTime              string           `db:"notice_time" json:"notice_time"`
	Interval                string           `db:"interval" json:"interval"`
	NotificationType        NotificationType `db:"notification_type" json:"notification_type"`
	Recipient               string           `db:"recipient" json:"recipient"`
	CustomEmailSubject      *string          `db:"custom_email_subject" json:"custom_email_subject,omitempty"`
	CustomMessage           *string          `db:"custom_message" json:"custom_message,omitempty"`
	CustomVariables         *string          `db:"custom_variables" json:"custom_variables,omitempty"`
	Info                    *string          `db:"info" json:"info,omitempty"`
	Count                   *int             `db:"count" json:"count,omitempty"`
	NotificationRetriesLeft int              `db:"notification_retries_left" json:"notification_retries_left"`
	UTCTimestamp            int64            `db:"utc_timestamp" json:"utc_timestamp"`
	CreatedAt               time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time        `db:"updated_at" json:"updated_at"`
}

// Note is a free-form memo without scheduling semantics.
type Note struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Category  string    `db:"category" json:"category"`
	Title     string    `db:"title" json:"title"`
	Info      string    `db:"info" json:"info"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

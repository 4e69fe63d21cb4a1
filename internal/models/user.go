package models

import "time"

// NotificationType selects the delivery channel for an event.
type NotificationType string

const (
	NotificationEmail NotificationType = "email"
	NotificationSMS   NotificationType = "sms"
)

// Valid reports whether t is a known channel.
func (t NotificationType) Valid() bool {
	return t == NotificationEmail || t == NotificationSMS
}

// User represents an account stored in the users table together with its monthly quota counters.
type User struct {
	ID                     string    `db:"id" json:"id"`
	Email                  string    `db:"email" json:"email"`
	Username               string    `db:"username" json:"username"`
	PasswordHash           string    `db:"password_hash" json:"-"`
	PhoneNumber            string    `db:"phone_number" json:"phone_number"`
	EmailNotificationsLeft int       `db:"email_notifications_left" json:"email_notifications_left"`
	SMSNotificationsLeft   int       `db:"sms_notifications_left" json:"sms_notifications_left"`
	PremiumMember          bool      `db:"premium_member" json:"premium_member"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}

// QuotaLeft returns the remaining monthly allowance for the channel.
func (u *User) QuotaLeft(t NotificationType) int {
	if t == NotificationSMS {
		return u.SMSNotificationsLeft
	}
	return u.EmailNotificationsLeft
}

// UserSettings holds the per-user defaults applied to new events.
type UserSettings struct {
	UserID                  string           `db:"user_id" json:"user_id"`
	DefaultNotificationType NotificationType `db:"default_notification_type" json:"default_notification_type"`
	DefaultTime             string           `db:"default_time" json:"default_time"`
	DefaultUTCOffset        string           `db:"default_utc_offset" json:"default_utc_offset"`
	SMSSenderName           *string          `db:"sms_sender_name" json:"sms_sender_name,omitempty"`
	UpdatedAt               time.Time        `db:"updated_at" json:"updated_at"`
}

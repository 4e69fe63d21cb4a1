package dto

import "time"

// Job types handled by the notification worker.
const (
	JobTypeNotify = "event.notify"
)

// Dispatch statuses reported by a heartbeat pass.
const (
	DispatchQueued = "queued"
	DispatchFailed = "enqueue_failed"
)

// NotifyJobPayload is carried by each per-event unit of work. Now is the instant captured at
// the start of the heartbeat pass that found the event.
type NotifyJobPayload struct {
	EventID string    `json:"event_id"`
	Now     time.Time `json:"now"`
}

// DispatchOutcome reports one event found expired during a heartbeat pass.
type DispatchOutcome struct {
	JobID   string `json:"job_id"`
	EventID string `json:"event_id"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}


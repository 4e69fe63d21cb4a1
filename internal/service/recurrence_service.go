package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/dont-forgetter-api/internal/models"
	"github.com/noah-isme/dont-forgetter-api/internal/repository"
	appErrors "github.com/noah-isme/dont-forgetter-api/pkg/errors"
	"github.com/noah-isme/dont-forgetter-api/pkg/timemath"
)

// RecurrenceOutcome describes what happened to an event after it fired.
type RecurrenceOutcome string

const (
	RecurrenceDeleted     RecurrenceOutcome = "deleted"
	RecurrenceRescheduled RecurrenceOutcome = "rescheduled"
)

// RecurrenceResult carries the new schedule of a rescheduled event.
type RecurrenceResult struct {
	Outcome      RecurrenceOutcome
	Date         string
	Time         string
	UTCTimestamp int64
	Count        *int
}

type recurrenceEventStore interface {
	Patch(ctx context.Context, id string, params repository.UpdateEventParams) error
	Delete(ctx context.Context, id string, unmodifiedSince time.Time) error
}

// RecurrenceService advances recurring events past "now" or deletes finished ones.
type RecurrenceService struct {
	events     recurrenceEventStore
	maxRetries int
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewRecurrenceService constructs the service. maxRetries is written back to
// notification_retries_left on every successful reschedule.
func NewRecurrenceService(events recurrenceEventStore, maxRetries int, metrics *MetricsService, logger *zap.Logger) *RecurrenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RecurrenceService{events: events, maxRetries: maxRetries, metrics: metrics, logger: logger}
}

// RescheduleOrDelete deletes one-shot and exhausted events and moves every other event to its
// first occurrence whose fire instant is at or after now. The comparison uses the fire instant,
// so a notice time moves the tie-break earlier than the occurrence itself.
//
// count is the number of notifications still owed including the one just handled. It is only
// decremented when delivered is true, and the event is deleted once it reaches zero.
//
// Writes are guarded by the loaded updated_at, so an event edited while it was being processed
// is left alone and ErrNotFound is returned. An event whose stored schedule cannot be advanced
// is deleted instead of firing again on every heartbeat.
func (s *RecurrenceService) RescheduleOrDelete(ctx context.Context, event *models.Event, now time.Time, delivered bool) (*RecurrenceResult, error) {
	interval, err := timemath.ParsePeriod("interval", event.Interval)
	if err == nil {
		err = timemath.ValidateInterval(event.Interval)
	}
	if err != nil {
		return s.discard(ctx, event, err)
	}
	if interval.IsZero() || (event.Count != nil && *event.Count <= 0) {
		return s.delete(ctx, event)
	}

	var count *int
	if event.Count != nil && delivered {
		left := *event.Count - 1
		if left <= 0 {
			return s.delete(ctx, event)
		}
		count = &left
	}

	next, err := nextOccurrence(event, interval, now)
	if err != nil {
		return s.discard(ctx, event, err)
	}
	date, clock, err := timemath.ToLocal(next, event.UTCOffset)
	if err != nil {
		return s.discard(ctx, event, err)
	}
	ts, err := timemath.ToAbsoluteTimestamp(date, clock, event.UTCOffset, event.NoticeTime)
	if err != nil {
		return s.discard(ctx, event, err)
	}

	retries := s.maxRetries
	params := repository.UpdateEventParams{
		Date:                    &date,
		Time:                    &clock,
		UTCTimestamp:            &ts,
		Count:                   count,
		NotificationRetriesLeft: &retries,
		UnmodifiedSince:         event.UpdatedAt,
	}
	if err := s.events.Patch(ctx, event.ID, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event changed or removed before reschedule")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule event")
	}

	event.Date, event.Time, event.UTCTimestamp = date, clock, ts
	if count != nil {
		event.Count = count
	}
	event.NotificationRetriesLeft = retries
	s.metrics.RecordReschedule(RecurrenceRescheduled)
	s.logger.Debug("event rescheduled",
		zap.String("event_id", event.ID),
		zap.String("date", date),
		zap.String("time", clock),
		zap.Int64("utc_timestamp", ts),
	)
	return &RecurrenceResult{Outcome: RecurrenceRescheduled, Date: date, Time: clock, UTCTimestamp: ts, Count: event.Count}, nil
}

func (s *RecurrenceService) discard(ctx context.Context, event *models.Event, cause error) (*RecurrenceResult, error) {
	s.logger.Error("event has an unusable schedule, deleting it", zap.String("event_id", event.ID), zap.Error(cause))
	return s.delete(ctx, event)
}

func (s *RecurrenceService) delete(ctx context.Context, event *models.Event) (*RecurrenceResult, error) {
	if err := s.events.Delete(ctx, event.ID, event.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event changed or removed before delete")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	s.metrics.RecordReschedule(RecurrenceDeleted)
	s.logger.Debug("event finished", zap.String("event_id", event.ID))
	return &RecurrenceResult{Outcome: RecurrenceDeleted}, nil
}

// nextOccurrence steps from the stored occurrence in whole intervals, at least once, until the
// fire instant is no longer before now. Each step is computed from the original occurrence so
// month-end clamping does not accumulate. Fixed intervals jump straight to the right step.
func nextOccurrence(event *models.Event, interval timemath.Period, now time.Time) (time.Time, error) {
	start, err := timemath.ToUTC(event.Date, event.Time, event.UTCOffset)
	if err != nil {
		return time.Time{}, err
	}
	offset, err := timemath.ParseOffset(event.UTCOffset)
	if err != nil {
		return time.Time{}, err
	}
	notice, err := timemath.ParsePeriod("notice_time", event.NoticeTime)
	if err != nil {
		return time.Time{}, err
	}
	local := start.In(time.FixedZone("", int(offset.Seconds())))

	step := 1
	if d, ok := interval.Fixed(); ok {
		first := timemath.Rewind(timemath.AdvanceN(local, interval, 1), notice)
		if lag := now.Unix() - first.Unix(); lag > 0 {
			step += int(lag / int64(d/time.Second))
		}
	}
	next := timemath.AdvanceN(local, interval, step)
	for timemath.Rewind(next, notice).Before(now) {
		step++
		next = timemath.AdvanceN(local, interval, step)
	}
	return next.UTC(), nil
}

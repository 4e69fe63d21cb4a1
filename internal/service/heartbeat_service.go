package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/dont-forgetter-api/internal/dto"
	"github.com/noah-isme/dont-forgetter-api/internal/models"
	appErrors "github.com/noah-isme/dont-forgetter-api/pkg/errors"
	"github.com/noah-isme/dont-forgetter-api/pkg/jobs"
)

type heartbeatEventStore interface {
	ListExpired(ctx context.Context, now int64) ([]models.Event, error)
	GetByID(ctx context.Context, id string) (*models.Event, error)
}

type eventNotifier interface {
	Process(ctx context.Context, event *models.Event) (Delivery, error)
}

type eventRescheduler interface {
	RescheduleOrDelete(ctx context.Context, event *models.Event, now time.Time, delivered bool) (*RecurrenceResult, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// HeartbeatService finds expired events and hands each one to the worker queue.
type HeartbeatService struct {
	events     heartbeatEventStore
	notifier   eventNotifier
	recurrence eventRescheduler
	queue      jobEnqueuer
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// NewHeartbeatService constructs the service. The queue is attached separately with SetQueue
// because the queue's handler is HandleJob.
func NewHeartbeatService(events heartbeatEventStore, notifier eventNotifier, recurrence eventRescheduler, metrics *MetricsService, logger *zap.Logger) *HeartbeatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeartbeatService{
		events:     events,
		notifier:   notifier,
		recurrence: recurrence,
		metrics:    metrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetQueue attaches the queue Beat dispatches to.
func (s *HeartbeatService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// SetClock overrides the time source.
func (s *HeartbeatService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Beat captures one instant, lists every event expiring before it and enqueues one notify job per
// event. It does not wait for the jobs to run.
func (s *HeartbeatService) Beat(ctx context.Context) ([]dto.DispatchOutcome, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "heartbeat queue not configured")
	}
	now := s.now()
	events, err := s.events.ListExpired(ctx, now.Unix())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expired events")
	}

	outcomes := make([]dto.DispatchOutcome, 0, len(events))
	dispatched := 0
	for _, event := range events {
		outcome := dto.DispatchOutcome{JobID: uuid.NewString(), EventID: event.ID, Status: dto.DispatchQueued}
		job := jobs.Job{
			ID:      outcome.JobID,
			Type:    dto.JobTypeNotify,
			Payload: dto.NotifyJobPayload{EventID: event.ID, Now: now},
		}
		if err := s.queue.Enqueue(job); err != nil {
			outcome.Status = dto.DispatchFailed
			outcome.Error = err.Error()
			s.logger.Warn("failed to enqueue notify job", zap.String("event_id", event.ID), zap.Error(err))
		} else {
			dispatched++
		}
		outcomes = append(outcomes, outcome)
	}

	s.metrics.RecordHeartbeat(dispatched)
	s.logger.Info("heartbeat",
		zap.Time("now", now),
		zap.Int("expired", len(events)),
		zap.Int("dispatched", dispatched),
	)
	return outcomes, nil
}

// HandleJob runs notify and reschedule for one event. A returned error asks the queue to redeliver
// the job; it is used for persistence failures only. Vanished events and unreachable channels are
// logged and dropped, the latter being picked up again by the next heartbeat.
func (s *HeartbeatService) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, err := notifyPayload(job)
	if err != nil {
		s.logger.Error("dropping malformed job", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}
	log := s.logger.With(zap.String("job_id", job.ID), zap.String("event_id", payload.EventID))

	event, err := s.events.GetByID(ctx, payload.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Info("event vanished before processing")
			return nil
		}
		return fmt.Errorf("load event %s: %w", payload.EventID, err)
	}

	delivery, err := s.notifier.Process(ctx, event)
	if err != nil {
		switch appErrors.FromError(err).Code {
		case appErrors.ErrChannelTransport.Code:
			log.Warn("notification channel unavailable, retrying on next heartbeat", zap.Error(err))
			return nil
		case appErrors.ErrNotFound.Code:
			log.Info("event or owner vanished during processing", zap.Error(err))
			return nil
		}
		return err
	}
	if !delivery.Advances() {
		return nil
	}

	result, err := s.recurrence.RescheduleOrDelete(ctx, event, payload.Now, delivery == DeliverySent)
	if err != nil {
		switch appErrors.FromError(err).Code {
		case appErrors.ErrNotFound.Code:
			log.Info("event changed or removed before reschedule", zap.Error(err))
			return nil
		case appErrors.ErrFormat.Code, appErrors.ErrValidation.Code:
			log.Error("event has an unusable schedule", zap.Error(err))
			return nil
		}
		return err
	}
	log.Debug("event processed", zap.String("outcome", string(result.Outcome)))
	return nil
}

func notifyPayload(job jobs.Job) (dto.NotifyJobPayload, error) {
	if job.Type != dto.JobTypeNotify {
		return dto.NotifyJobPayload{}, fmt.Errorf("unexpected job type %q", job.Type)
	}
	switch p := job.Payload.(type) {
	case dto.NotifyJobPayload:
		return p, nil
	case *dto.NotifyJobPayload:
		if p != nil {
			return *p, nil
		}
	}
	return dto.NotifyJobPayload{}, fmt.Errorf("unexpected payload %T", job.Payload)
}

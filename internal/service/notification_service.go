package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/dont-forgetter-api/internal/models"
	"github.com/noah-isme/dont-forgetter-api/internal/repository"
	appErrors "github.com/noah-isme/dont-forgetter-api/pkg/errors"
)

type notificationUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	GetSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	DecrementQuota(ctx context.Context, userID string, channel models.NotificationType) (int, bool, error)
}

type notificationEventStore interface {
	Patch(ctx context.Context, id string, params repository.UpdateEventParams) error
}

// Delivery is what Process did with a due event.
type Delivery string

const (
	// DeliverySent means the channel accepted the notification.
	DeliverySent Delivery = "sent"
	// DeliverySkipped covers quota suppression and a rejection with no retries left.
	DeliverySkipped Delivery = "skipped"
	// DeliveryHeld keeps the event at its current instant for the next heartbeat.
	DeliveryHeld Delivery = "held"
)

// Advances reports whether the event moves on to its next occurrence.
func (d Delivery) Advances() bool {
	return d != DeliveryHeld
}

// NotificationService sends the reminder for a due event and keeps quota and retry bookkeeping.
type NotificationService struct {
	users    notificationUserStore
	events   notificationEventStore
	renderer *NotificationRenderer
	channels Channels
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(
	users notificationUserStore,
	events notificationEventStore,
	renderer *NotificationRenderer,
	channels Channels,
	metrics *MetricsService,
	logger *zap.Logger,
) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = NewNotificationRenderer("")
	}
	return &NotificationService{users: users, events: events, renderer: renderer, channels: channels, metrics: metrics, logger: logger}
}

// Process notifies the owner of a due event. Transport failures are returned as
// ErrChannelTransport with DeliveryHeld and leave the event untouched.
func (s *NotificationService) Process(ctx context.Context, event *models.Event) (Delivery, error) {
	user, err := s.users.FindByID(ctx, event.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DeliveryHeld, appErrors.Clone(appErrors.ErrNotFound, "event owner not found")
		}
		return DeliveryHeld, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event owner")
	}

	kind := event.NotificationType
	if !user.PremiumMember && user.QuotaLeft(kind) <= 0 {
		s.metrics.RecordSuppressed(kind)
		s.logger.Info("notification suppressed, quota exhausted",
			zap.String("event_id", event.ID),
			zap.String("user_id", user.ID),
			zap.String("channel", string(kind)),
		)
		return DeliverySkipped, nil
	}

	channel, err := s.channels.Lookup(kind)
	if err != nil {
		return DeliveryHeld, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "unsupported notification type")
	}

	notification := s.renderer.Render(event)
	delivered, err := channel.Send(s.senderContext(ctx, user, kind), event.Recipient, notification.Title, notification.Body)
	if err != nil {
		s.metrics.RecordSend(kind, SendResultTransport)
		return DeliveryHeld, appErrors.Wrap(err, appErrors.ErrChannelTransport.Code, appErrors.ErrChannelTransport.Status,
			fmt.Sprintf("%s channel unavailable", kind))
	}
	if !delivered {
		s.metrics.RecordSend(kind, SendResultRejected)
		return s.countDownRetries(ctx, event)
	}

	s.metrics.RecordSend(kind, SendResultSent)
	if !user.PremiumMember {
		s.consumeQuota(ctx, user, kind)
	}
	return DeliverySent, nil
}

// countDownRetries keeps a rejected event in place while retries remain.
func (s *NotificationService) countDownRetries(ctx context.Context, event *models.Event) (Delivery, error) {
	if event.NotificationRetriesLeft <= 0 {
		s.logger.Warn("notification rejected, giving up", zap.String("event_id", event.ID))
		return DeliverySkipped, nil
	}

	left := event.NotificationRetriesLeft - 1
	if err := s.events.Patch(ctx, event.ID, repository.UpdateEventParams{NotificationRetriesLeft: &left, UnmodifiedSince: event.UpdatedAt}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DeliveryHeld, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return DeliveryHeld, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record notification retry")
	}
	event.NotificationRetriesLeft = left
	s.logger.Info("notification rejected, will retry",
		zap.String("event_id", event.ID),
		zap.Int("retries_left", left),
	)
	return DeliveryHeld, nil
}

// consumeQuota takes one send from the owner's allowance. The notification has already gone out,
// so failures here are logged rather than returned to avoid a duplicate send on redelivery.
func (s *NotificationService) consumeQuota(ctx context.Context, user *models.User, kind models.NotificationType) {
	remaining, decremented, err := s.users.DecrementQuota(ctx, user.ID, kind)
	if err != nil {
		s.logger.Error("failed to decrement quota", zap.String("user_id", user.ID), zap.String("channel", string(kind)), zap.Error(err))
		return
	}
	if !decremented || remaining > 0 {
		return
	}
	s.sendQuotaNotice(ctx, user, kind)
}

func (s *NotificationService) sendQuotaNotice(ctx context.Context, user *models.User, kind models.NotificationType) {
	channel, err := s.channels.Lookup(models.NotificationEmail)
	if err != nil {
		s.logger.Warn("quota notice skipped", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	title := fmt.Sprintf("You have used all of this month's %s reminders", kind)
	body := fmt.Sprintf("Hi %s,\n\nyour free %s reminders for this month are used up. Reminders on this channel "+
		"will not be sent until your allowance is renewed at the start of next month, but your events keep "+
		"their schedule.\n\n--\n%s", user.Username, kind, s.renderer.signature)
	ok, err := channel.Send(ctx, user.Email, title, body)
	if err != nil || !ok {
		s.logger.Warn("quota notice not delivered", zap.String("user_id", user.ID), zap.Bool("delivered", ok), zap.Error(err))
		return
	}
	s.logger.Info("quota notice sent", zap.String("user_id", user.ID), zap.String("channel", string(kind)))
}

// senderContext applies the owner's SMS sender name, if any.
func (s *NotificationService) senderContext(ctx context.Context, user *models.User, kind models.NotificationType) context.Context {
	if kind != models.NotificationSMS {
		return ctx
	}
	settings, err := s.users.GetSettings(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to load sms sender name", zap.String("user_id", user.ID), zap.Error(err))
		}
		return ctx
	}
	if settings.SMSSenderName == nil {
		return ctx
	}
	return WithSMSSender(ctx, *settings.SMSSenderName)
}

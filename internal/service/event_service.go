package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dont-forgetter-api/internal/dto"
	"github.com/noah-isme/dont-forgetter-api/internal/models"
	"github.com/noah-isme/dont-forgetter-api/internal/repository"
	appErrors "github.com/noah-isme/dont-forgetter-api/pkg/errors"
	"github.com/noah-isme/dont-forgetter-api/pkg/queryfilter"
	"github.com/noah-isme/dont-forgetter-api/pkg/timemath"
)

type eventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetForUser(ctx context.Context, id, userID string) (*models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	DeleteForUser(ctx context.Context, id, userID string) error
	List(ctx context.Context, userID, where string, args []interface{}, limit int) ([]models.Event, error)
}

type eventOwnerReader interface {
	Get(ctx context.Context, userID string) (*models.User, error)
	GetSettings(ctx context.Context, userID string) (*models.UserSettings, error)
}

// EventDefaults are used when neither the request nor the user's settings provide a value.
type EventDefaults struct {
	Time             string
	UTCOffset        string
	NotificationType models.NotificationType
	MaxRetries       int
	ListLimit        int
}

// EventService manages a user's events.
type EventService struct {
	repo      eventRepository
	owners    eventOwnerReader
	defaults  EventDefaults
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventService constructs the service.
func NewEventService(repo eventRepository, owners eventOwnerReader, defaults EventDefaults, validate *validator.Validate, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if defaults.Time == "" {
		defaults.Time = "10:00"
	}
	if defaults.UTCOffset == "" {
		defaults.UTCOffset = "+0"
	}
	if !defaults.NotificationType.Valid() {
		defaults.NotificationType = models.NotificationEmail
	}
	if defaults.ListLimit <= 0 {
		defaults.ListLimit = 50
	}
	return &EventService{repo: repo, owners: owners, defaults: defaults, validator: validate, logger: logger}
}

// Create stores a new event for the user.
func (s *EventService) Create(ctx context.Context, userID string, req dto.EventRequest) (*models.Event, error) {
	event := &models.Event{UserID: userID}
	if err := s.apply(ctx, event, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	s.logger.Debug("event created", zap.String("event_id", event.ID), zap.Int64("utc_timestamp", event.UTCTimestamp))
	return event, nil
}

// Update replaces the writable fields of an event and recomputes its expiry.
func (s *EventService) Update(ctx context.Context, userID, id string, req dto.EventRequest) (*models.Event, error) {
	event, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, event, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, event); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	return event, nil
}

// Get returns an event owned by the user.
func (s *EventService) Get(ctx context.Context, userID, id string) (*models.Event, error) {
	event, err := s.repo.GetForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

// Delete removes an event owned by the user.
func (s *EventService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.DeleteForUser(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	return nil
}

// List returns the user's events soonest first, optionally narrowed by a filter expression.
func (s *EventService) List(ctx context.Context, userID, query string) ([]models.Event, error) {
	where, args, err := compileFilter(query, repository.EventFilterColumns)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.List(ctx, userID, where, args, s.defaults.ListLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

// apply validates req, fills defaults from the owner's settings and copies it onto event.
func (s *EventService) apply(ctx context.Context, event *models.Event, req dto.EventRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid event payload")
	}
	interval := firstNonEmpty(req.Interval, timemath.None)
	if req.Count != nil && interval == timemath.None {
		return appErrors.Clone(appErrors.ErrValidation, "invalid event payload: count requires an interval")
	}

	owner, err := s.owners.Get(ctx, event.UserID)
	if err != nil {
		return err
	}
	settings, err := s.owners.GetSettings(ctx, event.UserID)
	if err != nil {
		if !appErrors.Is(err, appErrors.ErrNotFound) {
			return err
		}
		settings = &models.UserSettings{}
	}

	kind := models.NotificationType(firstNonEmpty(req.NotificationType, string(settings.DefaultNotificationType), string(s.defaults.NotificationType)))
	recipient, err := s.resolveRecipient(kind, strings.TrimSpace(req.Recipient), owner)
	if err != nil {
		return err
	}

	event.Category = firstNonEmpty(strings.TrimSpace(req.Category), models.DefaultCategory)
	event.Title = strings.TrimSpace(req.Title)
	event.Date = req.Date
	event.Time = firstNonEmpty(req.Time, settings.DefaultTime, s.defaults.Time)
	event.UTCOffset = firstNonEmpty(req.UTCOffset, settings.DefaultUTCOffset, s.defaults.UTCOffset)
	event.NoticeTime = firstNonEmpty(req.NoticeTime, timemath.None)
	event.Interval = interval
	event.NotificationType = kind
	event.Recipient = recipient
	event.CustomEmailSubject = req.CustomEmailSubject
	event.CustomMessage = req.CustomMessage
	event.CustomVariables = req.CustomVariables
	event.Info = req.Info
	event.Count = req.Count
	event.NotificationRetriesLeft = s.defaults.MaxRetries

	ts, err := timemath.ToAbsoluteTimestamp(event.Date, event.Time, event.UTCOffset, event.NoticeTime)
	if err != nil {
		return validationError(err, "invalid event schedule")
	}
	event.UTCTimestamp = ts
	return nil
}

// resolveRecipient falls back to the owner's e-mail address or phone number.
func (s *EventService) resolveRecipient(kind models.NotificationType, recipient string, owner *models.User) (string, error) {
	switch kind {
	case models.NotificationSMS:
		recipient = firstNonEmpty(recipient, owner.PhoneNumber)
		if recipient == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, "invalid event payload: sms notifications need a phone number on the profile or a recipient")
		}
		if err := s.validator.Var(recipient, "e164"); err != nil {
			return "", appErrors.Clone(appErrors.ErrValidation, "invalid event payload: recipient (e164)")
		}
	default:
		recipient = firstNonEmpty(recipient, owner.Email)
		if err := s.validator.Var(recipient, "email"); err != nil {
			return "", appErrors.Clone(appErrors.ErrValidation, "invalid event payload: recipient (email)")
		}
	}
	return recipient, nil
}

// compileFilter turns a list query into a WHERE fragment whose placeholders start at $2.
func compileFilter(query string, columns map[string]string) (string, []interface{}, error) {
	if strings.TrimSpace(query) == "" {
		return "", nil, nil
	}
	expr, err := queryfilter.Parse(query)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query: "+err.Error())
	}
	where, args, err := queryfilter.Compile(expr, columns, 2)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query: "+err.Error())
	}
	return where, args, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

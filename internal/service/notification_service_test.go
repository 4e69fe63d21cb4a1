package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dont-forgetter-api/internal/models"
	"github.com/noah-isme/dont-forgetter-api/internal/repository"
	appErrors "github.com/noah-isme/dont-forgetter-api/pkg/errors"
)

type patchCall struct {
	id     string
	params repository.UpdateEventParams
}

type eventStoreStub struct {
	mu        sync.Mutex
	events    map[string]*models.Event
	expired   []models.Event
	listErr   error
	getErr    error
	patchErr  error
	deleteErr error
	patches   []patchCall
	deleted   []string
}

func (s *eventStoreStub) ListExpired(ctx context.Context, now int64) ([]models.Event, error) {
	return s.expired, s.listErr
}

func (s *eventStoreStub) GetByID(ctx context.Context, id string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	event, ok := s.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *event
	return &clone, nil
}

func (s *eventStoreStub) Patch(ctx context.Context, id string, params repository.UpdateEventParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.patchErr != nil {
		return s.patchErr
	}
	if event, ok := s.events[id]; ok && !params.UnmodifiedSince.IsZero() && !event.UpdatedAt.Equal(params.UnmodifiedSince) {
		return sql.ErrNoRows
	}
	s.patches = append(s.patches, patchCall{id: id, params: params})
	if event, ok := s.events[id]; ok {
		if params.Date != nil {
			event.Date = *params.Date
		}
		if params.Time != nil {
			event.Time = *params.Time
		}
		if params.UTCTimestamp != nil {
			event.UTCTimestamp = *params.UTCTimestamp
		}
		if params.Count != nil {
			event.Count = params.Count
		}
		if params.NotificationRetriesLeft != nil {
			event.NotificationRetriesLeft = *params.NotificationRetriesLeft
		}
	}
	return nil
}

func (s *eventStoreStub) Delete(ctx context.Context, id string, unmodifiedSince time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, id)
	delete(s.events, id)
	return nil
}

type userStoreStub struct {
	user         *models.User
	findErr      error
	settings     *models.UserSettings
	remaining    int
	decremented  bool
	decrementErr error
	decrements   []models.NotificationType
}

func (s *userStoreStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.user == nil || s.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *userStoreStub) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	if s.settings == nil {
		return nil, sql.ErrNoRows
	}
	return s.settings, nil
}

func (s *userStoreStub) DecrementQuota(ctx context.Context, userID string, channel models.NotificationType) (int, bool, error) {
	s.decrements = append(s.decrements, channel)
	return s.remaining, s.decremented, s.decrementErr
}

type sentMessage struct {
	recipient string
	title     string
	body      string
}

type channelStub struct {
	mu        sync.Mutex
	delivered bool
	err       error
	sent      []sentMessage
}

func (c *channelStub) Send(ctx context.Context, recipient, title, body string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentMessage{recipient: recipient, title: title, body: body})
	return c.delivered, c.err
}

func (c *channelStub) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func newTestEvent(kind models.NotificationType) *models.Event {
	return &models.Event{
		ID:                      "evt-1",
		UserID:                  "user-1",
		Category:                models.DefaultCategory,
		Title:                   "Water plants",
		Date:                    "2024-01-01",
		Time:                    "10:00",
		UTCOffset:               "+0",
		NoticeTime:              "-",
		Interval:                "30min",
		NotificationType:        kind,
		Recipient:               "someone@example.com",
		NotificationRetriesLeft: 3,
	}
}

func newTestUser() *models.User {
	return &models.User{
		ID:                     "user-1",
		Email:                  "owner@example.com",
		Username:               "owner",
		PhoneNumber:            "+15550001111",
		EmailNotificationsLeft: 5,
		SMSNotificationsLeft:   5,
	}
}

func newNotificationFixture(users *userStoreStub, events *eventStoreStub) (*NotificationService, *channelStub, *channelStub) {
	email := &channelStub{delivered: true}
	sms := &channelStub{delivered: true}
	svc := NewNotificationService(users, events, NewNotificationRenderer(""), Channels{
		models.NotificationEmail: email,
		models.NotificationSMS:   sms,
	}, NewMetricsService(), nil)
	return svc, email, sms
}

func TestNotificationServiceSendsAndConsumesQuota(t *testing.T) {
	users := &userStoreStub{user: newTestUser(), remaining: 4, decremented: true}
	svc, email, _ := newNotificationFixture(users, &eventStoreStub{})

	delivery, err := svc.Process(context.Background(), newTestEvent(models.NotificationEmail))
	require.NoError(t, err)
	assert.Equal(t, DeliverySent, delivery)
	require.Len(t, email.sent, 1)
	assert.Equal(t, "someone@example.com", email.sent[0].recipient)
	assert.Equal(t, "Time for Water plants!", email.sent[0].title)
	assert.Equal(t, []models.NotificationType{models.NotificationEmail}, users.decrements)
}

func TestNotificationServiceLastQuotaSendsOneNotice(t *testing.T) {
	user := newTestUser()
	user.SMSNotificationsLeft = 1
	users := &userStoreStub{user: user, remaining: 0, decremented: true}
	svc, email, sms := newNotificationFixture(users, &eventStoreStub{})

	event := newTestEvent(models.NotificationSMS)
	event.Recipient = user.PhoneNumber
	delivery, err := svc.Process(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, DeliverySent, delivery)

	require.Len(t, sms.sent, 1)
	require.Len(t, email.sent, 1)
	assert.Equal(t, "owner@example.com", email.sent[0].recipient)
	assert.Contains(t, email.sent[0].title, "sms")
}

func TestNotificationServiceQuotaAlreadyZeroSkipsNotice(t *testing.T) {
	users := &userStoreStub{user: newTestUser(), remaining: 0, decremented: false}
	svc, email, _ := newNotificationFixture(users, &eventStoreStub{})

	delivery, err := svc.Process(context.Background(), newTestEvent(models.NotificationEmail))
	require.NoError(t, err)
	assert.Equal(t, DeliverySent, delivery)
	assert.Len(t, email.sent, 1)
}

func TestNotificationServiceSuppressesWhenQuotaExhausted(t *testing.T) {
	user := newTestUser()
	user.EmailNotificationsLeft = 0
	users := &userStoreStub{user: user}
	events := &eventStoreStub{}
	svc, email, _ := newNotificationFixture(users, events)

	delivery, err := svc.Process(context.Background(), newTestEvent(models.NotificationEmail))
	require.NoError(t, err)
	assert.Equal(t, DeliverySkipped, delivery)
	assert.True(t, delivery.Advances())
	assert.Empty(t, email.sent)
	assert.Empty(t, users.decrements)
	assert.Empty(t, events.patches)
}

func TestNotificationServicePremiumIgnoresQuota(t *testing.T) {
	user := newTestUser()
	user.PremiumMember = true
	user.EmailNotificationsLeft = 0
	users := &userStoreStub{user: user}
	svc, email, _ := newNotificationFixture(users, &eventStoreStub{})

	delivery, err := svc.Process(context.Background(), newTestEvent(models.NotificationEmail))
	require.NoError(t, err)
	assert.Equal(t, DeliverySent, delivery)
	assert.Len(t, email.sent, 1)
	assert.Empty(t, users.decrements)
}

func TestNotificationServiceRejectedSendCountsDownRetries(t *testing.T) {
	users := &userStoreStub{user: newTestUser()}
	events := &eventStoreStub{}
	svc, email, _ := newNotificationFixture(users, events)
	email.delivered = false

	event := newTestEvent(models.NotificationEmail)
	event.NotificationRetriesLeft = 1

	delivery, err := svc.Process(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, DeliveryHeld, delivery)
	assert.False(t, delivery.Advances())
	require.Len(t, events.patches, 1)
	require.NotNil(t, events.patches[0].params.NotificationRetriesLeft)
	assert.Equal(t, 0, *events.patches[0].params.NotificationRetriesLeft)
	assert.Nil(t, events.patches[0].params.Date)
	assert.Equal(t, 0, event.NotificationRetriesLeft)

	delivery, err = svc.Process(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, DeliverySkipped, delivery)
	assert.Len(t, events.patches, 1)
	assert.Empty(t, users.decrements)
}

func TestNotificationServiceTransportError(t *testing.T) {
	users := &userStoreStub{user: newTestUser()}
	events := &eventStoreStub{}
	svc, email, _ := newNotificationFixture(users, events)
	email.err = errors.New("dial tcp: connection refused")

	delivery, err := svc.Process(context.Background(), newTestEvent(models.NotificationEmail))
	require.Error(t, err)
	assert.Equal(t, DeliveryHeld, delivery)
	assert.Equal(t, appErrors.ErrChannelTransport.Code, appErrors.FromError(err).Code)
	assert.Empty(t, events.patches)
	assert.Empty(t, users.decrements)
}

func TestNotificationServiceMissingOwner(t *testing.T) {
	svc, _, _ := newNotificationFixture(&userStoreStub{}, &eventStoreStub{})

	_, err := svc.Process(context.Background(), newTestEvent(models.NotificationEmail))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

type smsClientStub struct {
	from string
	to   string
	text string
}

func (s *smsClientStub) Send(ctx context.Context, from, to, text string) (bool, error) {
	s.from, s.to, s.text = from, to, text
	return true, nil
}

func (s *smsClientStub) DefaultSender() string { return "dont-forgetter" }

func TestNotificationServiceUsesSMSSenderName(t *testing.T) {
	sender := "Grandma"
	users := &userStoreStub{
		user:        newTestUser(),
		settings:    &models.UserSettings{UserID: "user-1", SMSSenderName: &sender},
		remaining:   3,
		decremented: true,
	}
	client := &smsClientStub{}
	svc := NewNotificationService(users, &eventStoreStub{}, nil, Channels{models.NotificationSMS: NewSMSChannel(client)}, nil, nil)

	event := newTestEvent(models.NotificationSMS)
	event.Recipient = "+15550001111"
	delivery, err := svc.Process(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, DeliverySent, delivery)
	assert.Equal(t, "Grandma", client.from)
	assert.Equal(t, "+15550001111", client.to)
	assert.Contains(t, client.text, "Time for Water plants!\n\n")
}

func TestSMSChannelDefaultSender(t *testing.T) {
	client := &smsClientStub{}
	ok, err := NewSMSChannel(client).Send(context.Background(), "+1555", "title", "body")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dont-forgetter", client.from)
	assert.Equal(t, "title\n\nbody", client.text)
}

type mailerStub struct {
	subject, body, to string
}

func (m *mailerStub) Send(ctx context.Context, subject, body, to string) (bool, error) {
	m.subject, m.body, m.to = subject, body, to
	return true, nil
}

func TestEmailChannelMapsTitleToSubject(t *testing.T) {
	m := &mailerStub{}
	ok, err := NewEmailChannel(m).Send(context.Background(), "a@example.com", "subject", "body")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, mailerStub{subject: "subject", body: "body", to: "a@example.com"}, *m)
}

func TestChannelsLookupUnknown(t *testing.T) {
	_, err := Channels{}.Lookup(models.NotificationSMS)
	assert.Error(t, err)
}

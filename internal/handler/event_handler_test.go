package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dont-forgetter-api/internal/dto"
	"github.com/noah-isme/dont-forgetter-api/internal/models"
	appErrors "github.com/noah-isme/dont-forgetter-api/pkg/errors"
)

type eventServiceMock struct {
	userID  string
	id      string
	query   string
	req     dto.EventRequest
	event   *models.Event
	events  []models.Event
	err     error
	deleted bool
}

func (m *eventServiceMock) Create(ctx context.Context, userID string, req dto.EventRequest) (*models.Event, error) {
	m.userID, m.req = userID, req
	return m.event, m.err
}

func (m *eventServiceMock) Update(ctx context.Context, userID, id string, req dto.EventRequest) (*models.Event, error) {
	m.userID, m.id, m.req = userID, id, req
	return m.event, m.err
}

func (m *eventServiceMock) Get(ctx context.Context, userID, id string) (*models.Event, error) {
	m.userID, m.id = userID, id
	return m.event, m.err
}

func (m *eventServiceMock) Delete(ctx context.Context, userID, id string) error {
	m.userID, m.id = userID, id
	m.deleted = m.err == nil
	return m.err
}

func (m *eventServiceMock) List(ctx context.Context, userID, query string) ([]models.Event, error) {
	m.userID, m.query = userID, query
	return m.events, m.err
}

func TestEventHandlerCreate(t *testing.T) {
	svc := &eventServiceMock{event: &models.Event{ID: "evt-1", Title: "Dentist"}}
	h := NewEventHandler(svc)

	body, _ := json.Marshal(map[string]interface{}{"title": "Dentist", "date": "2024-01-01", "interval": "1m"})
	c, w := newGinContext(http.MethodPost, "/api/v1/events", body)
	withUser(c, "user-1")

	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "user-1", svc.userID)
	assert.Equal(t, "1m", svc.req.Interval)

	var event models.Event
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &event))
	assert.Equal(t, "evt-1", event.ID)
}

func TestEventHandlerCreateRejectsBrokenJSON(t *testing.T) {
	svc := &eventServiceMock{}
	h := NewEventHandler(svc)

	c, w := newGinContext(http.MethodPost, "/api/v1/events", []byte(`{"title":`))
	withUser(c, "user-1")

	h.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, w).Error.Code)
	assert.Empty(t, svc.userID)
}

func TestEventHandlerRequiresUser(t *testing.T) {
	h := NewEventHandler(&eventServiceMock{})
	c, w := newGinContext(http.MethodGet, "/api/v1/events", nil)

	h.List(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEventHandlerListPassesQuery(t *testing.T) {
	svc := &eventServiceMock{events: []models.Event{{ID: "a"}, {ID: "b"}}}
	h := NewEventHandler(svc)

	c, w := newGinContext(http.MethodGet, "/api/v1/events?query="+url.QueryEscape(`equal(category,"work")`), nil)
	withUser(c, "user-1")

	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `equal(category,"work")`, svc.query)

	var events []models.Event
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &events))
	assert.Len(t, events, 2)
}

func TestEventHandlerGetNotFound(t *testing.T) {
	svc := &eventServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "event not found")}
	h := NewEventHandler(svc)

	c, w := newGinContext(http.MethodGet, "/api/v1/events/evt-9", nil)
	c.Params = gin.Params{{Key: "id", Value: "evt-9"}}
	withUser(c, "user-1")

	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "evt-9", svc.id)
}

func TestEventHandlerUpdateAndDelete(t *testing.T) {
	svc := &eventServiceMock{event: &models.Event{ID: "evt-1"}}
	h := NewEventHandler(svc)

	body, _ := json.Marshal(map[string]interface{}{"title": "Moved", "date": "2024-02-01"})
	c, w := newGinContext(http.MethodPut, "/api/v1/events/evt-1", body)
	c.Params = gin.Params{{Key: "id", Value: "evt-1"}}
	withUser(c, "user-1")
	h.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Moved", svc.req.Title)

	c, w = newGinContext(http.MethodDelete, "/api/v1/events/evt-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "evt-1"}}
	withUser(c, "user-1")
	h.Delete(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, svc.deleted)
}

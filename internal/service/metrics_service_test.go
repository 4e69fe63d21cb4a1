package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dont-forgetter-api/internal/models"
)

// gathered sums every sample of the named family.
func gathered(t *testing.T, m *MetricsService, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				total += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				total += metric.GetGauge().GetValue()
			}
		}
	}
	return total
}

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()

	m.RecordHeartbeat(2)
	m.RecordHeartbeat(0)
	m.RecordSend(models.NotificationSMS, SendResultSent)
	m.RecordSend(models.NotificationEmail, SendResultTransport)
	m.RecordSuppressed(models.NotificationEmail)
	m.RecordReschedule(RecurrenceDeleted)
	m.RecordJobFailure("notify", "notify")
	m.ObserveHTTPRequest("GET", "/api/v1/events", 200, 10*time.Millisecond)

	assert.Equal(t, float64(2), gathered(t, m, "heartbeat_runs_total"))
	assert.Equal(t, float64(2), gathered(t, m, "heartbeat_events_dispatched_total"))
	assert.Equal(t, float64(2), gathered(t, m, "notifications_sent_total"))
	assert.Equal(t, float64(1), gathered(t, m, "notifications_suppressed_total"))
	assert.Equal(t, float64(1), gathered(t, m, "events_rescheduled_total"))
	assert.Equal(t, float64(1), gathered(t, m, "queue_jobs_failed_total"))
	assert.Equal(t, float64(1), gathered(t, m, "http_requests_total"))
}

func TestMetricsServiceQueueDepth(t *testing.T) {
	m := NewMetricsService()
	depth := 7
	require.NoError(t, m.RegisterQueueDepth("notify", func() int { return depth }))
	assert.Error(t, m.RegisterQueueDepth("notify", func() int { return 0 }))

	assert.Equal(t, float64(7), gathered(t, m, "queue_depth"))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordHeartbeat(1)
	m.RecordSend(models.NotificationEmail, SendResultRejected)
	m.RecordQuotaReset()
	m.RecordJobFailure("q", "t")
	assert.NoError(t, m.RegisterQueueDepth("q", func() int { return 0 }))
}

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.PushEvent("message:new", OutcomeApplied)
	m.PushEvent("message:new", OutcomeApplied)
	m.PushEvent("message:new", OutcomeDuplicate)
	m.Refetch()
	m.TransportError("send")
	m.SetUnread(4)
	m.SetConversations(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.pushEvents.WithLabelValues("message:new", OutcomeApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pushEvents.WithLabelValues("message:new", OutcomeDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refetches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transportErrors.WithLabelValues("send")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.unread))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.conversations))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SetUnread(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "pulsesync_unread_total 3")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.PushEvent("message:new", OutcomeApplied)
	m.Refetch()
	m.TransportError("send")
	m.SetUnread(1)
	m.SetConversations(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Push event outcomes.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
	OutcomeDeferred  = "deferred"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry        *prometheus.Registry
	pushEvents      *prometheus.CounterVec
	refetches       prometheus.Counter
	transportErrors *prometheus.CounterVec
	unread          prometheus.Gauge
	conversations   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pushEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsesync_push_events_total",
			Help: "Push events received, by type and outcome.",
		}, []string{"type", "outcome"}),
		refetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulsesync_conversation_refetches_total",
			Help: "Full conversation listing fetches.",
		}),
		transportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsesync_transport_errors_total",
			Help: "Failed transport calls, by operation.",
		}, []string{"op"}),
		unread: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulsesync_unread_total",
			Help: "Aggregate unread message count.",
		}),
		conversations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulsesync_conversations",
			Help: "Conversations held in the directory.",
		}),
	}
	m.registry.MustRegister(m.pushEvents, m.refetches, m.transportErrors, m.unread, m.conversations)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PushEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.pushEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) Refetch() {
	if m == nil {
		return
	}
	m.refetches.Inc()
}

func (m *Metrics) TransportError(op string) {
	if m == nil {
		return
	}
	m.transportErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) SetUnread(total int) {
	if m == nil {
		return
	}
	m.unread.Set(float64(total))
}

func (m *Metrics) SetConversations(n int) {
	if m == nil {
		return
	}
	m.conversations.Set(float64(n))
}

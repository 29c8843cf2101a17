package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scope label values for routed messages.
const (
	ScopeLobby   = "lobby"
	ScopePrivate = "private"
)

var (
	// Session Metrics
	ChatSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Current number of open chat sessions",
		},
	)

	ChatSessionsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sessions_rejected_total",
			Help: "Total number of chat connections closed for failed authentication",
		},
	)

	ChatSessionsSuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sessions_superseded_total",
			Help: "Total number of chat sessions replaced by a newer connection of the same user",
		},
	)

	// Message Metrics
	ChatMessagesRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_routed_total",
			Help: "Total number of chat messages persisted and delivered",
		},
		[]string{"scope"},
	)

	ChatPersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_persist_failures_total",
			Help: "Total number of chat messages that could not be stored",
		},
	)

	ChatDeliveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_delivery_failures_total",
			Help: "Total number of failed writes to a live chat channel",
		},
	)

	ChatFanoutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_fanout_duration_seconds",
			Help:    "Time spent delivering one chat message to all of its targets",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scope"},
	)
)

func scope(lobby bool) string {
	if lobby {
		return ScopeLobby
	}
	return ScopePrivate
}

// RecordMessageRouted records a stored message and how long its fan-out took.
func RecordMessageRouted(lobby bool, fanout time.Duration) {
	s := scope(lobby)
	ChatMessagesRouted.WithLabelValues(s).Inc()
	ChatFanoutDuration.WithLabelValues(s).Observe(fanout.Seconds())
}

// TrackSession moves the open-session gauge up or down.
func TrackSession(open bool) {
	if open {
		ChatSessionsActive.Inc()
	} else {
		ChatSessionsActive.Dec()
	}
}

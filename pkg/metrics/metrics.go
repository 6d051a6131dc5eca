// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes recorded by the query pipeline.
const (
	OutcomeSuccess    = "success"
	OutcomeError      = "error"
	OutcomeStale      = "stale"
	OutcomeSuppressed = "suppressed"
)

// Merge outcomes recorded by the conversation store.
const (
	MergeApplied   = "applied"
	MergeDuplicate = "duplicate"
	MergeDropped   = "dropped"
)

var (
	// RequestDuration tracks outbound REST request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Outbound API request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total outbound REST requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total outbound API requests",
		},
		[]string{"method", "path", "status"},
	)

	// QueryFetchesTotal counts collection fetches by outcome.
	QueryFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_fetches_total",
			Help: "Collection fetches by outcome",
		},
		[]string{"collection", "outcome"},
	)

	// QueryFetchDuration tracks collection fetch latency, stale ones included.
	QueryFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "query_fetch_duration_seconds",
			Help:    "Collection fetch duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"collection"},
	)

	// ChannelState is 1 for the current channel state and 0 for the others.
	ChannelState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "channel_state",
			Help: "Realtime channel state (1 = current)",
		},
		[]string{"state"},
	)

	// ChannelReconnectAttempts counts scheduled reconnect attempts.
	ChannelReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "channel_reconnect_attempts_total",
			Help: "Total scheduled reconnect attempts",
		},
	)

	// ChannelEventsTotal counts emitted channel events by kind.
	ChannelEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_events_total",
			Help: "Realtime channel events by kind",
		},
		[]string{"kind"},
	)

	// ChannelSendsTotal counts outbound commands by type and outcome.
	ChannelSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_sends_total",
			Help: "Outbound channel commands",
		},
		[]string{"type", "outcome"},
	)

	// MessagesMergedTotal counts inbound message merges by outcome.
	MessagesMergedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_merged_total",
			Help: "Messages merged into the conversation store",
		},
		[]string{"outcome"},
	)

	// StatusRequestsTotal counts requests served by the local status server.
	StatusRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_http_requests_total",
			Help: "Requests served by the status server",
		},
		[]string{"method", "route", "status"},
	)

	// StatusRequestDuration tracks status server latency.
	StatusRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "status_http_request_duration_seconds",
			Help:    "Status server request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// EventStreamClients tracks open event stream connections.
	EventStreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "status_event_stream_clients",
			Help: "Open event stream connections",
		},
	)
)

// RecordRequest records metrics for an outbound REST request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordFetch records a finished collection fetch.
func RecordFetch(collection, outcome string, duration float64) {
	QueryFetchesTotal.WithLabelValues(collection, outcome).Inc()
	if outcome != OutcomeSuppressed {
		QueryFetchDuration.WithLabelValues(collection).Observe(duration)
	}
}

// SetChannelState marks state as current among all known states.
func SetChannelState(current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		ChannelState.WithLabelValues(s).Set(v)
	}
}

// RecordSend records an outbound channel command.
func RecordSend(msgType string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	ChannelSendsTotal.WithLabelValues(msgType, outcome).Inc()
}

// RecordStatusRequest records a request served by the status server.
func RecordStatusRequest(method, route, status string, duration float64) {
	StatusRequestsTotal.WithLabelValues(method, route, status).Inc()
	StatusRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// IncrementStreamClients increments the open event stream gauge.
func IncrementStreamClients() {
	EventStreamClients.Inc()
}

// DecrementStreamClients decrements the open event stream gauge.
func DecrementStreamClients() {
	EventStreamClients.Dec()
}

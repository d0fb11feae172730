package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Command outcomes recorded in CommandsTotal.
const (
	OutcomeSuccess      = "success"
	OutcomeError        = "error"
	OutcomeUnauthorized = "unauthorized"
)

var (
	// CommandsTotal counts store commands by store, command and outcome.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_commands_total",
		Help: "Total number of store commands by outcome",
	}, []string{"store", "command", "outcome"})

	// ForcedLogoutsTotal counts local session teardowns after authorization errors.
	ForcedLogoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedsync_forced_logouts_total",
		Help: "Total number of forced logouts after authorization errors",
	})

	// TransportLatency records API request latency.
	TransportLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feedsync_transport_request_duration_seconds",
		Help:    "API request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// StaleResponsesDiscarded counts fetch responses superseded by a newer request.
	StaleResponsesDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_stale_responses_discarded_total",
		Help: "Total number of fetch responses discarded as stale",
	}, []string{"entity"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})
)

// RecordCommand increments the command counter.
func RecordCommand(store, command, outcome string) {
	CommandsTotal.WithLabelValues(store, command, outcome).Inc()
}

// TrackRequest returns a function that records request latency when called
// with the final HTTP status (0 when no response arrived).
func TrackRequest(method, route string) func(status int) {
	start := time.Now()
	return func(status int) {
		TransportLatency.WithLabelValues(method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	}
}

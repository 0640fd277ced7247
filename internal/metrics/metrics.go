package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	sessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "neocare",
			Name:      "booking_sessions_started_total",
			Help:      "Count of booking conversations started.",
		},
	)

	sessionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neocare",
			Name:      "booking_sessions_finished_total",
			Help:      "Count of booking conversations finished by outcome.",
		},
		[]string{"outcome"},
	)

	bookingCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "neocare",
			Name:      "booking_requests_created_total",
			Help:      "Count of booking requests persisted.",
		},
	)

	commitConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "neocare",
			Name:      "booking_commit_conflicts_total",
			Help:      "Count of commits lost to a concurrent reservation.",
		},
	)

	parseFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neocare",
			Name:      "utterance_parse_failures_total",
			Help:      "Count of utterances that matched no grammar rule, by kind.",
		},
		[]string{"kind"},
	)

	recommendations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neocare",
			Name:      "recommendations_total",
			Help:      "Count of recommendation service calls by outcome.",
		},
		[]string{"outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neocare",
			Name:      "http_requests_total",
			Help:      "Count of HTTP API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			sessionsStarted, sessionsFinished, bookingCreated,
			commitConflicts, parseFailures, recommendations, httpRequests,
		)
	})
}

func IncSessionStarted() {
	sessionsStarted.Inc()
}

func IncSessionFinished(outcome string) {
	sessionsFinished.WithLabelValues(outcome).Inc()
}

func IncBookingCreated() {
	bookingCreated.Inc()
}

func IncCommitConflict() {
	commitConflicts.Inc()
}

func IncParseFailure(kind string) {
	parseFailures.WithLabelValues(kind).Inc()
}

func IncRecommendation(outcome string) {
	recommendations.WithLabelValues(outcome).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VotesTotal counts vote casts by target kind and policy outcome.
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confessional_votes_total",
		Help: "Total votes applied by target and outcome",
	}, []string{"target", "outcome"})

	// ModerationTransitions counts approve/reject attempts by result code.
	ModerationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confessional_moderation_transitions_total",
		Help: "Moderation transitions by action and result",
	}, []string{"action", "result"})

	// PublishAttempts counts broadcast attempts by result.
	PublishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confessional_publish_attempts_total",
		Help: "Publish attempts by result",
	}, []string{"result"})

	// CommentsAppended counts successful comment appends.
	CommentsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "confessional_comments_appended_total",
		Help: "Comments appended to approved confessions",
	})

	// SubmissionsTotal counts confession submissions by result code.
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confessional_submissions_total",
		Help: "Confession submissions by result",
	}, []string{"result"})

	// JanitorRuns counts maintenance jobs by job and result.
	JanitorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confessional_janitor_runs_total",
		Help: "Janitor job runs by job and result",
	}, []string{"job", "result"})

	// FeedDeliveries counts messages relayed to the gateway feed by type.
	FeedDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confessional_feed_deliveries_total",
		Help: "Notification messages relayed over the websocket feed",
	}, []string{"type"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "confessional_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// ResultLabel turns an error code into a bounded metric label.
func ResultLabel(code string) string {
	if code == "" {
		return "ok"
	}
	return code
}

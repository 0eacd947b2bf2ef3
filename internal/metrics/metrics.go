package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_sessions_started_total",
			Help: "Quiz sessions started",
		},
		[]string{"tier"},
	)

	SessionsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_sessions_finished_total",
			Help: "Quiz sessions finished",
		},
		[]string{"tier"},
	)

	// outcome: correct/incorrect/timeout
	AnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_answers_total",
			Help: "Answers submitted",
		},
		[]string{"tier", "outcome"},
	)

	TierUnlocks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_tier_unlocks_total",
			Help: "Tier unlocks granted by the reconciler",
		},
		[]string{"tier"},
	)

	PersistenceFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_persistence_fallbacks_total",
			Help: "Finished sessions queued locally because the progress store failed",
		},
	)

	OfflineReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_offline_replays_total",
			Help: "Queued results replayed against the progress store",
		},
		[]string{"status"},
	)

	QuestionBankFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_question_bank_fallbacks_total",
			Help: "Question fetches served from the bundled set",
		},
		[]string{"tier", "reason"},
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_reconcile_duration_seconds",
			Help:    "Time spent persisting a finished session",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

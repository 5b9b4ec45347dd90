package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcomes
const (
	OutcomeOK        = "ok"
	OutcomeRejected  = "rejected"
	OutcomeBusy      = "busy"
	OutcomeInvariant = "invariant"
	OutcomeError     = "error"
)

var (
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_engine_turns_total",
			Help: "Total number of processed turns by outcome.",
		},
		[]string{"outcome"},
	)

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quest_engine_turn_duration_seconds",
		Help:    "Time spent processing a turn, including storage.",
		Buckets: prometheus.DefBuckets,
	})

	questsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quest_engine_quests_completed_total",
		Help: "Total number of quests completed.",
	})

	consequencesFiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quest_engine_consequences_fired_total",
		Help: "Total number of scheduled consequences that fired.",
	})

	requeuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quest_engine_requests_requeued_total",
		Help: "Total number of queued turn requests put back because their session was busy.",
	})
)

// ObserveTurn records one turn's outcome and duration
func ObserveTurn(outcome string, d time.Duration) {
	turnsTotal.WithLabelValues(outcome).Inc()
	turnDuration.Observe(d.Seconds())
}

func QuestsCompleted(n int) {
	questsCompletedTotal.Add(float64(n))
}

func ConsequencesFired(n int) {
	consequencesFiredTotal.Add(float64(n))
}

func Requeued() {
	requeuedTotal.Inc()
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

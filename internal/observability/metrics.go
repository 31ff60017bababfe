package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RunsStarted counts pipeline runs accepted for execution.
	RunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailor_runs_started_total",
			Help: "Total number of pipeline runs started",
		},
	)

	// RunsCompleted counts terminal runs by outcome (done, failed, cancelled).
	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_runs_completed_total",
			Help: "Total number of pipeline runs reaching a terminal state",
		},
		[]string{"outcome"},
	)

	// RunsActive tracks runs currently executing.
	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tailor_runs_active",
			Help: "Number of pipeline runs currently executing",
		},
	)

	// StageDuration observes wall time per completed stage.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "tailor_stage_duration_seconds",
			Help: "Duration of pipeline stage execution in seconds",
		},
		[]string{"stage"},
	)

	// StageFailures counts stage failures by error kind.
	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_stage_failures_total",
			Help: "Total number of stage failures",
		},
		[]string{"stage", "kind"},
	)

	// Degradations counts rewrites rejected by the synthesis consistency check.
	Degradations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailor_synthesis_degradations_total",
			Help: "Total number of rewrites rejected in favor of original text",
		},
	)

	// LLMCalls counts text-generation calls by outcome (ok, timeout,
	// rate_limited, model_error, error).
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_llm_calls_total",
			Help: "Total number of text-generation calls",
		},
		[]string{"outcome"},
	)

	// LLMInFlight tracks text-generation calls currently executing.
	LLMInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tailor_llm_in_flight",
			Help: "Number of text-generation calls currently executing",
		},
	)
)

// Handler serves the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

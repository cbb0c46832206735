// Package metrics exposes the Prometheus instrumentation for the solve
// pipeline (SPEC_FULL.md DOMAIN STACK). It implements solver.Recorder so
// internal/engine can pass it straight into Solve without an adapter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder wires solve-duration, solve-outcome, and suggestion-count
// observations into Prometheus collectors.
type Recorder struct {
	solveDuration   prometheus.Histogram
	solveOutcomes   *prometheus.CounterVec
	suggestionsMade prometheus.Counter
}

// New registers the engine's collectors against reg and returns a ready
// Recorder. Pass prometheus.NewRegistry() in tests to avoid colliding
// with the global default registry.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		solveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "timetable",
			Subsystem: "solver",
			Name:      "solve_duration_seconds",
			Help:      "Wall-clock duration of one Solve invocation.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
		solveOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timetable",
			Subsystem: "solver",
			Name:      "solve_outcomes_total",
			Help:      "Count of Solve invocations by terminal status.",
		}, []string{"status"}),
		suggestionsMade: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "timetable",
			Subsystem: "suggest",
			Name:      "suggestions_total",
			Help:      "Count of resolution suggestions produced.",
		}),
	}
	reg.MustRegister(r.solveDuration, r.solveOutcomes, r.suggestionsMade)
	return r
}

// ObserveSolveDuration implements solver.Recorder.
func (r *Recorder) ObserveSolveDuration(seconds float64) {
	if r == nil {
		return
	}
	r.solveDuration.Observe(seconds)
}

// IncSolveOutcome implements solver.Recorder.
func (r *Recorder) IncSolveOutcome(status string) {
	if r == nil {
		return
	}
	r.solveOutcomes.WithLabelValues(status).Inc()
}

// IncSuggestions records how many suggestions one SuggestResolutions call
// produced.
func (r *Recorder) IncSuggestions(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.suggestionsMade.Add(float64(count))
}

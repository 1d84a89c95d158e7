package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for orchestration runs.
// All methods are safe on a nil receiver.
type Metrics struct {
	runs       *prometheus.CounterVec
	steps      *prometheus.CounterVec
	capability *prometheus.HistogramVec
	toolCalls  *prometheus.CounterVec
	activeRuns *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seeker",
			Name:      "runs_total",
			Help:      "Completed orchestration runs by outcome.",
		}, []string{"outcome"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seeker",
			Name:      "steps_total",
			Help:      "Executed plan steps by outcome.",
		}, []string{"outcome"}),
		capability: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "seeker",
			Name:      "capability_seconds",
			Help:      "Latency of completion calls by template.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"template", "outcome"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seeker",
			Name:      "tool_calls_total",
			Help:      "Tool invocations made by the reasoning loop.",
		}, []string{"tool", "outcome"}),
		activeRuns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "seeker",
			Name:      "active_runs",
			Help:      "Runs currently in each orchestration phase.",
		}, []string{"phase"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.steps, m.capability, m.toolCalls, m.activeRuns)
	}
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) RunFinished(err error) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) StepFinished(err error) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) ObserveCapability(template string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.capability.WithLabelValues(template, outcome(err)).Observe(d.Seconds())
}

func (m *Metrics) ToolCalled(tool string, err error) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome(err)).Inc()
}

// EnterPhase moves one run from phase `from` to phase `to`. Empty names are skipped.
func (m *Metrics) EnterPhase(from, to string) {
	if m == nil {
		return
	}
	if from != "" {
		m.activeRuns.WithLabelValues(from).Dec()
	}
	if to != "" {
		m.activeRuns.WithLabelValues(to).Inc()
	}
}

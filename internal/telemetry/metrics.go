package telemetry

import (
	"context"

	"github.com/casualjim/roost/flow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
)

var _ flow.Hook = (*Metrics)(nil)

// Metrics counts flow runs, step runs and routing decisions.
type Metrics struct {
	runs     *prometheus.CounterVec
	steps    *prometheus.CounterVec
	routes   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	active   *prometheus.GaugeVec
}

// NewMetrics registers the flow collectors with reg. A nil registerer uses
// the prometheus default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roost",
			Subsystem: "flow",
			Name:      "runs_total",
			Help:      "Flow runs that reached a final state, by outcome.",
		}, []string{"flow", "outcome"}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roost",
			Subsystem: "flow",
			Name:      "steps_total",
			Help:      "Step executions, by outcome.",
		}, []string{"flow", "step", "outcome"}),
		routes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roost",
			Subsystem: "flow",
			Name:      "routes_total",
			Help:      "Routing decisions, by router and label.",
		}, []string{"flow", "router", "label"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "roost",
			Subsystem: "flow",
			Name:      "step_duration_seconds",
			Help:      "Time spent in a step body.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"flow", "step"}),
		active: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "roost",
			Subsystem: "flow",
			Name:      "active_runs",
			Help:      "Flow runs currently in progress.",
		}, []string{"flow"}),
	}
}

func (m *Metrics) OnEvent(_ context.Context, ev flow.Event) {
	switch e := ev.(type) {
	case flow.FlowStarted:
		m.active.WithLabelValues(e.Flow).Inc()
	case flow.StepCompleted:
		m.steps.WithLabelValues(e.Flow, e.Step, outcomeCompleted).Inc()
		m.duration.WithLabelValues(e.Flow, e.Step).Observe(e.Elapsed.Seconds())
	case flow.StepFailed:
		m.steps.WithLabelValues(e.Flow, e.Step, outcomeFailed).Inc()
		m.duration.WithLabelValues(e.Flow, e.Step).Observe(e.Elapsed.Seconds())
	case flow.Routed:
		m.routes.WithLabelValues(e.Flow, e.Router, e.Label).Inc()
	case flow.FlowFinished:
		m.active.WithLabelValues(e.Flow).Dec()
		m.runs.WithLabelValues(e.Flow, outcomeCompleted).Inc()
	case flow.FlowFailed:
		m.active.WithLabelValues(e.Flow).Dec()
		m.runs.WithLabelValues(e.Flow, outcomeFailed).Inc()
	}
}

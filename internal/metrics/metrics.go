package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shard_coord"

// Metrics is safe to use through a nil pointer, which records nothing.
type Metrics struct {
	pulses        *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	members       *prometheus.GaugeVec
	reaped        prometheus.Counter
	pulseDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		pulses: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pulses_total",
				Help:      "Pulses run by local agents, by outcome",
			},
			[]string{"type", "outcome"},
		),
		transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "State transitions of local agents",
			},
			[]string{"type", "state"},
		),
		members: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cluster_members",
				Help:      "Members of the last cluster descriptor applied locally",
			},
			[]string{"type"},
		),
		reaped: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reaped_total",
				Help:      "Expired agent rows deleted by local agents",
			},
		),
		pulseDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pulse_duration_seconds",
				Help:      "Duration of one pulse transaction",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
	}
}

func (m *Metrics) ObservePulse(agentType, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.pulses.WithLabelValues(agentType, outcome).Inc()
	m.pulseDuration.Observe(d.Seconds())
}

func (m *Metrics) Transition(agentType, state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(agentType, state).Inc()
}

func (m *Metrics) ClusterMembers(agentType string, n int) {
	if m == nil {
		return
	}
	m.members.WithLabelValues(agentType).Set(float64(n))
}

func (m *Metrics) Reaped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.reaped.Add(float64(n))
}

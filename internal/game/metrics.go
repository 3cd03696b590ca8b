package game

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the engine's counters to Prometheus.
type Metrics struct {
	Sabotages      prometheus.Counter
	Attacks        *prometheus.CounterVec // by target count
	Knockoffs      prometheus.Counter
	EmergencyFixes prometheus.Counter
	Deployments    *prometheus.CounterVec // by result
	Score          prometheus.Gauge
}

// NewMetrics registers the engine metrics against reg. A nil reg yields a
// registry that is connected to nothing, so callers may always pass metrics
// around without nil checks.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		Sabotages: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pipecat_sabotages_total",
			Help: "Total slots targeted by sabotage attacks.",
		}),
		Attacks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pipecat_attacks_total",
			Help: "Sabotage attacks launched, by number of targets.",
		}, []string{"targets"}),
		Knockoffs: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pipecat_knockoffs_total",
			Help: "Slots knocked empty by unresolved warnings.",
		}),
		EmergencyFixes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pipecat_emergency_fixes_total",
			Help: "Emergency fixes bought by the player.",
		}),
		Deployments: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pipecat_deployments_total",
			Help: "Finished deployment sessions, by result.",
		}, []string{"result"}),
		Score: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pipecat_score",
			Help: "Current session score.",
		}),
	}
}

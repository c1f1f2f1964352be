package observability

import (
	"context"

	"github.com/aretw0/golem/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records engine activity as Prometheus series.
type Metrics struct {
	turnsTotal       *prometheus.CounterVec
	turnDuration     *prometheus.HistogramVec
	transitionsTotal *prometheus.CounterVec
	actionErrors     *prometheus.CounterVec
	inFlight         prometheus.Gauge
}

// NewMetrics registers the golem series on reg.
// Pass prometheus.DefaultRegisterer to expose them on promhttp.Handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "golem_turns_total",
				Help: "Total number of processed turns by event type and outcome",
			},
			[]string{"type", "status"},
		),
		turnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "golem_turn_duration_seconds",
				Help:    "Duration of turns from acceptance to persistence",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "golem_state_visits_total",
				Help: "Total number of transitions into a state",
			},
			[]string{"state"},
		),
		actionErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "golem_action_errors_total",
				Help: "Total number of contained action failures by state",
			},
			[]string{"state"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "golem_turns_in_flight",
				Help: "Number of turns currently running",
			},
		),
	}
}

// Hooks returns lifecycle hooks feeding the metrics.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnStart: func(ctx context.Context, e *domain.TurnEvent) {
			m.inFlight.Inc()
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			m.inFlight.Dec()
			status := "ok"
			if e.Err != nil {
				status = "error"
			}
			m.turnsTotal.WithLabelValues(string(e.Type), status).Inc()
			m.turnDuration.WithLabelValues(string(e.Type)).Observe(e.Duration.Seconds())
		},
		OnStateChange: func(ctx context.Context, e *domain.TransitionEvent) {
			m.transitionsTotal.WithLabelValues(e.To).Inc()
		},
		OnActionError: func(ctx context.Context, e *domain.ActionError) {
			m.actionErrors.WithLabelValues(e.State).Inc()
		},
	}
}

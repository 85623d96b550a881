package observability

import (
	"context"
	"errors"
	"strconv"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "parley"

// Metrics holds the turn-level collectors.
type Metrics struct {
	turns              *prometheus.CounterVec
	turnDuration       *prometheus.HistogramVec
	completed          prometheus.Counter
	stepEnters         *prometheus.CounterVec
	evaluationFailures *prometheus.CounterVec
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Total number of turns processed, by outcome",
			},
			[]string{"outcome"},
		),
		turnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "turn_duration_seconds",
				Help:      "Duration of turns, by outcome",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"outcome"},
		),
		completed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_completed_total",
				Help:      "Total number of turns that ended a conversation",
			},
		),
		stepEnters: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "step_enters_total",
				Help:      "Total number of times a session moved onto a step",
			},
			[]string{"scenario_id", "step_type"},
		),
		evaluationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluation_failures_total",
				Help:      "Conditions that could not be evaluated, by kind",
			},
			[]string{"kind"},
		),
	}
}

// Collectors returns every collector owned by m.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.turns, m.turnDuration, m.completed, m.stepEnters, m.evaluationFailures}
}

// Register adds the collectors to reg. Already registered collectors are not an error.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnEnd: func(_ context.Context, e *domain.TurnResultEvent) {
			outcome := string(e.Outcome)
			m.turns.WithLabelValues(outcome).Inc()
			m.turnDuration.WithLabelValues(outcome).Observe(e.Duration.Seconds())
			if e.Completed {
				m.completed.Inc()
			}
		},
		OnStepEnter: func(_ context.Context, e *domain.StepEvent) {
			m.stepEnters.WithLabelValues(strconv.FormatInt(e.ScenarioID, 10), string(e.StepType)).Inc()
		},
		OnEvaluationFailure: func(_ context.Context, e *domain.EvaluationEvent) {
			kind := string(e.Kind)
			if kind == "" {
				kind = "none"
			}
			m.evaluationFailures.WithLabelValues(kind).Inc()
		},
	}
}

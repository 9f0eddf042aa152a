package observability

import (
	"github.com/aretw0/relite/pkg/domain"
	"github.com/aretw0/relite/pkg/model"
	"github.com/aretw0/relite/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors fed by observed stores.
type Metrics struct {
	Transitions *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Failures    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relite_transitions_total",
				Help: "Total number of committed state transitions",
			},
			[]string{"store", "action"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relite_action_duration_seconds",
				Help:    "Time spent by actions producing the next state",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"store", "action"},
		),
		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relite_listener_failures_total",
				Help: "Total number of publishes where at least one listener failed",
			},
			[]string{"store"},
		),
	}
	for _, c := range []prometheus.Collector{m.Transitions, m.Duration, m.Failures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records the transitions of st under the label name.
// An empty name falls back to the store name. It returns the unsubscribe function.
func Observe[S any](m *Metrics, st *store.Store[S], name string) func() {
	if name == "" {
		name = st.Name()
	}
	return st.Subscribe(func(rec domain.ChangeRecord[S]) error {
		m.record(name, rec.ActionType, rec.Duration().Seconds())
		return nil
	})
}

// ObserveStorage records the transitions of every store in st under the label name.
// Records of a storage do not carry their store, so they share one label.
func (m *Metrics) ObserveStorage(st *model.Storage, name string) func() {
	return st.Subscribe(func(rec domain.ChangeRecord[any]) error {
		m.record(name, rec.ActionType, rec.Duration().Seconds())
		return nil
	})
}

// CountFailure increments the listener failure counter of a store.
func (m *Metrics) CountFailure(name string) {
	m.Failures.WithLabelValues(name).Inc()
}

func (m *Metrics) record(name, action string, seconds float64) {
	m.Transitions.WithLabelValues(name, action).Inc()
	m.Duration.WithLabelValues(name, action).Observe(seconds)
}

package resilience

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Breaker collectors, labelled by BreakerConfig.Target.
var (
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "freight",
		Name:      "breaker_state",
		Help:      "Current breaker state: 0=closed, 1=open, 2=half-open.",
	}, []string{"target"})
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "freight",
		Name:      "breaker_transitions_total",
		Help:      "Breaker state transitions.",
	}, []string{"target", "from", "to"})
)

// RegisterMetrics registers the breaker collectors with reg, or the default
// registerer when reg is nil. Registering twice is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{BreakerState, BreakerTransitions} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

func setStateGauge(target string, s State) {
	BreakerState.WithLabelValues(target).Set(float64(s))
}

func recordTransition(target string, from, to State) {
	BreakerTransitions.WithLabelValues(target, from.String(), to.String()).Inc()
}

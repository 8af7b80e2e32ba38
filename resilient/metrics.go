package resilient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports invoker activity to Prometheus. A nil *Metrics is valid and records nothing.
type Metrics struct {
	AttemptsTotal    *prometheus.CounterVec
	FallbacksTotal   *prometheus.CounterVec
	InvocationsTotal *prometheus.CounterVec
	Duration         *prometheus.HistogramVec
}

// NewMetrics creates the invoker metrics and registers them with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "slots_endpoint_attempts_total",
			Help: "Total number of endpoint attempts by outcome",
		}, []string{"slot", "endpoint", "outcome"}),
		FallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "slots_fallbacks_total",
			Help: "Total number of switches from a primary to a fallback endpoint",
		}, []string{"slot", "from", "to"}),
		InvocationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "slots_invocations_total",
			Help: "Total number of slot invocations by result",
		}, []string{"slot", "result"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slots_invocation_duration_seconds",
			Help:    "Slot invocation latency including retries and fallback",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 180, 600},
		}, []string{"slot"}),
	}
}

func (m *Metrics) recordAttempt(slot, endpoint, outcome string) {
	if m == nil || m.AttemptsTotal == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(slot, endpoint, outcome).Inc()
}

func (m *Metrics) recordFallback(slot, from, to string) {
	if m == nil || m.FallbacksTotal == nil {
		return
	}
	m.FallbacksTotal.WithLabelValues(slot, from, to).Inc()
}

func (m *Metrics) recordInvocation(slot, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if m.InvocationsTotal != nil {
		m.InvocationsTotal.WithLabelValues(slot, result).Inc()
	}
	if m.Duration != nil {
		m.Duration.WithLabelValues(slot).Observe(elapsed.Seconds())
	}
}

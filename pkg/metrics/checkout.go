package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records wizard transitions and order submissions.
type CheckoutMetrics struct {
	transitions *prometheus.CounterVec
	submissions *prometheus.CounterVec
	submitTime  *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_stage_transitions_total",
		Help: "Checkout stage transitions by origin stage and result.",
	}, []string{"stage", "result"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_submissions_total",
		Help: "Checkout submissions by outcome.",
	}, []string{"outcome"})
	submitTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_submit_duration_seconds",
		Help:    "Time spent persisting a submitted checkout.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(transitions, submissions, submitTime)
	return &CheckoutMetrics{
		transitions: transitions,
		submissions: submissions,
		submitTime:  submitTime,
	}
}

// ObserveTransition counts an attempted move away from stage.
func (c *CheckoutMetrics) ObserveTransition(stage, result string) {
	if c == nil || c.transitions == nil {
		return
	}
	c.transitions.WithLabelValues(normalizeLabel(stage), normalizeLabel(result)).Inc()
}

// ObserveSubmission counts a submission and records its latency.
func (c *CheckoutMetrics) ObserveSubmission(outcome string, duration time.Duration) {
	if c == nil || c.submissions == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	c.submissions.WithLabelValues(outcome).Inc()
	c.submitTime.WithLabelValues(outcome).Observe(duration.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

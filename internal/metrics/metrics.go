package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ledger_signer"

// Result labels
const (
	ResultSuccess = "success"
)

// Metrics holds the signing metrics of one signer instance
type Metrics struct {
	SignRequestsTotal  *prometheus.CounterVec
	SignDuration       *prometheus.HistogramVec
	StateTransitions   *prometheus.CounterVec
	SessionsOpenTotal  prometheus.Counter
	SessionsCloseTotal prometheus.Counter
	AccountsListed     prometheus.Histogram
}

// New registers the signing metrics with reg. A nil reg creates unregistered
// collectors, which is what tests usually want.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SignRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sign_requests_total",
			Help:      "Total number of signing requests by result.",
		}, []string{"result"}),
		SignDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sign_duration_seconds",
			Help:      "Duration of signing requests including user confirmation on the device.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"result"}),
		StateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Number of signing state machine transitions by target state.",
		}, []string{"state"}),
		SessionsOpenTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_sessions_opened_total",
			Help:      "Number of device sessions opened.",
		}),
		SessionsCloseTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_sessions_closed_total",
			Help:      "Number of device sessions closed.",
		}),
		AccountsListed: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "accounts_listed",
			Help:      "Number of accounts listed per request.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
		}),
	}
}

package dispatch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the dispatch counters exported to Prometheus
type Metrics struct {
	OffersTotal        prometheus.Counter
	EscalationsTotal   prometheus.Counter
	AssignmentsTotal   prometheus.Counter
	UnmatchedTotal     prometheus.Counter
	CancellationsTotal prometheus.Counter
	PenaltiesTotal     prometheus.Counter
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics returns the process-wide dispatch metrics. Counters register
// once no matter how many coordinators are built.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			OffersTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "dispatch_offers_total",
				Help: "Total ride offers sent to drivers",
			}),
			EscalationsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "dispatch_round_escalations_total",
				Help: "Total escalations to a wider search round",
			}),
			AssignmentsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "dispatch_assignments_total",
				Help: "Total rides assigned to a driver",
			}),
			UnmatchedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "dispatch_unmatched_total",
				Help: "Total rides that exhausted all search rounds",
			}),
			CancellationsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "dispatch_cancellations_total",
				Help: "Total rides cancelled by the rider during dispatch",
			}),
			PenaltiesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "dispatch_offer_timeouts_total",
				Help: "Total offers that expired without a driver response",
			}),
		}
	})
	return metrics
}

// Package metrics provides prometheus instrumentation for the ledger's
// hot paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks registration throughput and the failure modes worth
// alerting on.
type Metrics struct {
	RegistrationsCreated prometheus.Counter
	CapacityRejections   prometheus.Counter
	PaymentCodeRetries   prometheus.Counter
	BarcodesGenerated    prometheus.Counter
	DeliverySignals      *prometheus.CounterVec
}

// New registers all ledger metrics on the given registerer. Tests pass a
// fresh prometheus.NewRegistry() so suites don't collide on the default
// registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistrationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "gandalf_registrations_created_total",
			Help: "Total number of registrations successfully created",
		}),
		CapacityRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "gandalf_capacity_rejections_total",
			Help: "Total number of writes rolled back because a tier was sold out",
		}),
		PaymentCodeRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "gandalf_payment_code_retries_total",
			Help: "Total number of payment code draws redone after a uniqueness collision",
		}),
		BarcodesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "gandalf_barcodes_generated_total",
			Help: "Total number of barcodes generated",
		}),
		DeliverySignals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gandalf_delivery_signals_total",
			Help: "Delivery signals emitted by the dispatcher, by kind",
		}, []string{"signal"}),
	}
}

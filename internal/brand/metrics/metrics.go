package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the brand registry module.
type Metrics struct {
	RegistriesCreated     prometheus.Counter
	BrandsRegistered      prometheus.Counter
	RegisterBrandDuration prometheus.Histogram
}

// New creates a Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		RegistriesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_registries_created_total",
			Help: "Total number of brand registries initialized",
		}),
		BrandsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_brands_registered_total",
			Help: "Total number of brands registered",
		}),
		RegisterBrandDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigil_register_brand_duration_seconds",
			Help:    "Duration of RegisterBrand operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveRegisterBrand records the duration of a RegisterBrand operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRegisterBrand(start time.Time) {
	m.RegisterBrandDuration.Observe(time.Since(start).Seconds())
}

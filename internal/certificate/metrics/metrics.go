package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the certificate store module. Fallback
// generations are counted separately because any sustained rate there means
// the primary ID space is misbehaving.
type Metrics struct {
	StoresCreated       prometheus.Counter
	CertificatesMinted  prometheus.Counter
	FallbackGenerations prometheus.Counter
	IDCollisionFaults   prometheus.Counter
	MintBatchDuration   prometheus.Histogram
}

// New creates a Metrics instance with all certificate module metrics registered.
func New() *Metrics {
	return &Metrics{
		StoresCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_certificate_stores_created_total",
			Help: "Total number of certificate stores initialized",
		}),
		CertificatesMinted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_certificates_minted_total",
			Help: "Total number of certificates minted",
		}),
		FallbackGenerations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_certificate_id_fallback_total",
			Help: "Certificate IDs that needed the higher-entropy fallback path",
		}),
		IDCollisionFaults: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_certificate_id_collision_faults_total",
			Help: "Mint calls aborted after exhausting ID regeneration retries",
		}),
		MintBatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigil_mint_batch_duration_seconds",
			Help:    "Duration of MintBatch operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// ObserveMintBatch records the duration of a MintBatch operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveMintBatch(start time.Time) {
	m.MintBatchDuration.Observe(time.Since(start).Seconds())
}

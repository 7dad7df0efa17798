package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification engine. Verdicts are
// labelled by entry point and reason so a spike in "window expired" or
// "already used" is visible without log digging.
type Metrics struct {
	Verdicts *prometheus.CounterVec
	Consumed prometheus.Counter
}

// New creates a Metrics instance with all verification metrics registered.
func New() *Metrics {
	return &Metrics{
		Verdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigil_verification_verdicts_total",
			Help: "Verification verdicts by entry point and reason",
		}, []string{"op", "reason"}),
		Consumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_certificates_consumed_total",
			Help: "Certificates irreversibly marked used",
		}),
	}
}

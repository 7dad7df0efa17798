// Package ports declares the narrow views the verification engine needs
// from the rest of the system. The engine owns no state of its own: it reads
// certificate facts through CertificateReader and delegates its two
// mutations through CertificateWriter.
package ports

import (
	"context"
	"time"

	id "sigil/pkg/domain"
)

// CertificateFacts is the slice of a certificate the verdict logic consumes.
// The JSON tags serve cache serialization.
type CertificateFacts struct {
	Used           bool       `json:"used"`
	ExpiryDate     time.Time  `json:"expiry_date"`
	FirstScannedAt *time.Time `json:"first_scanned_at,omitempty"`
}

// CertificateReader loads certificate facts. A nil result with a nil error
// means the certificate does not exist.
type CertificateReader interface {
	Facts(ctx context.Context, brand id.BrandID, certID id.CertificateID) (*CertificateFacts, error)
}

// CertificateWriter performs the two mutations the engine may request:
// recording the first scan and consuming the certificate. Both delegate to
// the certificate store's atomic transitions.
type CertificateWriter interface {
	RecordFirstScan(ctx context.Context, brand id.BrandID, certID id.CertificateID, at time.Time) error
	Consume(ctx context.Context, brand id.BrandID, certID id.CertificateID) error
}

package models

import (
	"time"

	id "sigil/pkg/domain"
)

// Certificate is one product-authenticity record in a brand's store.
//
// Invariants:
//   - ExpiryDate is strictly after MintDate, enforced at mint time and
//     never mutated afterward
//   - Used is monotonic false→true; never reset
//   - FirstScannedAt is monotonic unset→set; never overwritten
//
// The identifier is derived from a keyed hash of the brand principal, batch
// code, and sequence number, so it can be independently recomputed and
// audited (VerifyIntegrity). Certificates that collided and took the
// higher-entropy fallback path carry the transaction nonce that seeded it.
type Certificate struct {
	ID             id.CertificateID `json:"id"`
	ProductName    string           `json:"product_name"`
	Origin         string           `json:"origin"`
	BatchCode      string           `json:"batch_code"`
	MintDate       time.Time        `json:"mint_date"`
	ExpiryDate     time.Time        `json:"expiry_date"`
	SequenceNumber uint64           `json:"sequence_number"`
	Used           bool             `json:"used"`
	FirstScannedAt *time.Time       `json:"first_scanned_at,omitempty"`
	Nonce          uint64           `json:"nonce"`
}

// IsExpired reports whether the certificate's lifetime has ended at now.
// Expiry is inclusive: now == ExpiryDate counts as expired.
func (c *Certificate) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiryDate)
}

// TimeUntilExpiry returns the remaining lifetime at now, zero once expired.
func (c *Certificate) TimeUntilExpiry(now time.Time) time.Duration {
	if c.IsExpired(now) {
		return 0
	}
	return c.ExpiryDate.Sub(now)
}

// Package audit records an append-only trail of ledger mutations. Events are
// emitted by services after a successful state transition, never on read
// paths, so the trail mirrors the ledger's committed history.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action identifies the ledger transition an event records.
const (
	ActionRegistryInitialized = "registry.initialized"
	ActionBrandRegistered     = "brand.registered"
	ActionStoreInitialized    = "store.initialized"
	ActionBatchMinted         = "batch.minted"
	ActionCertificateScanned  = "certificate.scanned"
	ActionCertificateConsumed = "certificate.consumed"
)

// Event is one audit record. Principal is the caller that drove the
// transition; the remaining fields identify the touched state.
type Event struct {
	ID            uuid.UUID `json:"id"`
	Action        string    `json:"action"`
	Timestamp     time.Time `json:"timestamp"`
	Principal     string    `json:"principal,omitempty"`
	Brand         string    `json:"brand,omitempty"`
	CertificateID string    `json:"certificate_id,omitempty"`
	BatchCode     string    `json:"batch_code,omitempty"`
	Count         int       `json:"count,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
}

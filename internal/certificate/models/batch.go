package models

import (
	"time"

	id "sigil/pkg/domain"
)

// Batch groups certificates minted under one capacity limit and shared
// expiry. Mint calls sharing the batch code accumulate into the same batch
// until its declared capacity is reached.
//
// Invariants:
//   - CurrentCount ≤ Capacity
//   - len(MemberIDs) == CurrentCount, insertion-ordered
type Batch struct {
	Code         string             `json:"code"`
	Capacity     uint64             `json:"capacity"`
	CurrentCount uint64             `json:"current_count"`
	ExpiryDate   time.Time          `json:"expiry_date"`
	MemberIDs    []id.CertificateID `json:"member_ids"`
}

// Remaining returns how many more certificates the batch can accept.
func (b *Batch) Remaining() uint64 {
	return b.Capacity - b.CurrentCount
}

// BatchSpec describes the batch a mint call targets. Capacity and ExpiryDate
// are only consulted when the batch does not exist yet; an existing batch
// keeps its declared capacity and expiry.
type BatchSpec struct {
	Code       string
	Capacity   uint64
	ExpiryDate time.Time
}

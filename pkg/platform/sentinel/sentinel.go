package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about stored records, not validation
// failures:
// - ErrNotFound: registry, store, certificate, or batch does not exist
// - ErrConflict: record with the same key (or indexed name) already exists
// - ErrExpired: certificate's expiry date has passed
// - ErrAlreadyUsed: certificate was already consumed
//
// For validation errors (bad input, out-of-range capacity), use
// pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrAlreadyUsed = errors.New("already used")
)

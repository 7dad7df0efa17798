package models

import (
	"strings"
	"time"

	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
)

// BrandRecord is one registered brand inside an admin's registry.
//
// Invariants:
//   - DisplayName is non-empty and at most 128 characters
//   - Exactly one record per brand principal within a registry
//   - The registry's name index points back to at most one record per name;
//     duplicate names are rejected at registration
//   - Immutable after creation: there is no update or delete operation
//
// Registration is the single gatekeeper for minting: a certificate store
// only accepts mints from principals present in the given admin's registry.
type BrandRecord struct {
	ID           id.BrandID `json:"id"`
	DisplayName  string     `json:"display_name"`
	RegisteredAt time.Time  `json:"registered_at"`
}

func NewBrandRecord(brandID id.BrandID, displayName string, now time.Time) (*BrandRecord, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "brand display name cannot be empty")
	}
	if len(displayName) > 128 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "brand display name must be 128 characters or less")
	}
	return &BrandRecord{
		ID:           brandID,
		DisplayName:  displayName,
		RegisteredAt: now,
	}, nil
}

// Package domain defines the typed identifiers shared across Sigil modules.
// Distinct types for admin and brand principals make cross-assignment a
// compile error; both are UUIDs underneath.
package domain

import (
	"github.com/google/uuid"

	dErrors "sigil/pkg/domain-errors"
)

// AdminID identifies the principal that owns a brand registry.
type AdminID uuid.UUID

// BrandID identifies the principal authorized to mint and consume
// certificates for a brand.
type BrandID uuid.UUID

func (id AdminID) String() string { return uuid.UUID(id).String() }
func (id AdminID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id BrandID) String() string { return uuid.UUID(id).String() }
func (id BrandID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// Bytes returns the raw UUID bytes, used as hash input by certificate ID
// generation. Stable across String round-trips.
func (id BrandID) Bytes() []byte {
	u := uuid.UUID(id)
	return u[:]
}

// ParseAdminID parses and validates an admin principal ID.
// IDs must be valid, non-nil UUIDs.
func ParseAdminID(s string) (AdminID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return AdminID{}, err
	}
	return AdminID(u), nil
}

// ParseBrandID parses and validates a brand principal ID.
func ParseBrandID(s string) (BrandID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return BrandID{}, err
	}
	return BrandID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}

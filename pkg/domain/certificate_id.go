package domain

import (
	"strings"

	dErrors "sigil/pkg/domain-errors"
)

// Certificate identifiers are fixed-length strings over a 36-symbol
// alphanumeric alphabet, unique within one brand's store. They are derived
// from a keyed hash so a printed code can be independently recomputed and
// audited (see certificate/idgen).
const (
	CertificateIDLength   = 8
	CertificateIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// CertificateID is an 8-character base36 certificate identifier.
type CertificateID string

func (id CertificateID) String() string { return string(id) }

// Valid reports whether the identifier has the canonical length and alphabet.
func (id CertificateID) Valid() bool {
	if len(id) != CertificateIDLength {
		return false
	}
	for _, r := range id {
		if !strings.ContainsRune(CertificateIDAlphabet, r) {
			return false
		}
	}
	return true
}

// ParseCertificateID validates an externally supplied certificate identifier.
func ParseCertificateID(s string) (CertificateID, error) {
	id := CertificateID(strings.ToUpper(strings.TrimSpace(s)))
	if !id.Valid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "certificate id must be 8 alphanumeric characters")
	}
	return id, nil
}

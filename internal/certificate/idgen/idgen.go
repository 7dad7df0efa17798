// Package idgen derives certificate identifiers: 8 characters over the
// 36-symbol alphanumeric alphabet, computed as a keyed blake2b hash of
// fixed-purpose fields. The primary tuple (brand, batch code, sequence
// number) is fully reproducible, which is what makes VerifyIntegrity a
// meaningful audit. The fallback tuple mixes in the mint date, the store's
// transaction nonce, and an attempt counter so a colliding primary ID can
// escape into fresh hash space within the same call.
//
// Charset space is 36^8 ≈ 2.8e12, so primary collisions within one brand's
// store are expected to be vanishingly rare; the fallback exists to make
// them survivable rather than fatal.
package idgen

import (
	"encoding/binary"
	"time"

	"golang.org/x/crypto/blake2b"

	id "sigil/pkg/domain"
)

// hashKey domain-separates certificate ID hashing from any other blake2b
// use. Changing it changes every derived ID; it is part of the format.
var hashKey = []byte("sigil/certificate-id/v1")

// Generator derives certificate identifiers. The interface exists so mint
// tests can inject colliding generators; production code uses Deterministic.
type Generator interface {
	Primary(brand id.BrandID, batchCode string, sequence uint64) id.CertificateID
	Fallback(brand id.BrandID, productName, batchCode string, mintDate time.Time, nonce uint64, attempt uint64) id.CertificateID
}

// Deterministic is the production Generator.
type Deterministic struct{}

func (Deterministic) Primary(brand id.BrandID, batchCode string, sequence uint64) id.CertificateID {
	h := newKeyedHash()
	h.Write(brand.Bytes())
	h.Write([]byte(batchCode))
	writeUint64(h, sequence)
	return project(h.Sum(nil))
}

func (Deterministic) Fallback(brand id.BrandID, productName, batchCode string, mintDate time.Time, nonce uint64, attempt uint64) id.CertificateID {
	h := newKeyedHash()
	h.Write(brand.Bytes())
	h.Write([]byte(productName))
	h.Write([]byte(batchCode))
	writeUint64(h, uint64(mintDate.Unix()))
	writeUint64(h, nonce)
	writeUint64(h, attempt)
	return project(h.Sum(nil))
}

func newKeyedHash() hashWriter {
	h, err := blake2b.New256(hashKey)
	if err != nil {
		// blake2b.New256 only fails on oversized keys; hashKey is fixed.
		panic(err)
	}
	return h
}

type hashWriter interface {
	Write(p []byte) (int, error)
	Sum(b []byte) []byte
}

func writeUint64(h hashWriter, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

// project maps the digest onto the ID alphabet by per-byte modulo.
func project(digest []byte) id.CertificateID {
	out := make([]byte, id.CertificateIDLength)
	for i := range out {
		out[i] = id.CertificateIDAlphabet[int(digest[i])%len(id.CertificateIDAlphabet)]
	}
	return id.CertificateID(out)
}

// Package adapters bridges the verification engine's narrow ports onto the
// certificate service without the engine importing certificate internals.
package adapters

import (
	"context"
	"time"

	"sigil/internal/certificate/service"
	"sigil/internal/verification/ports"
	id "sigil/pkg/domain"
)

// CertificateAdapter exposes a certificate service as the reader and writer
// ports the verification engine needs.
type CertificateAdapter struct {
	certs *service.CertificateService
}

func NewCertificateAdapter(certs *service.CertificateService) *CertificateAdapter {
	return &CertificateAdapter{certs: certs}
}

// Facts projects the stored certificate down to the fields verification
// decisions depend on. Absent certificates yield (nil, nil).
func (a *CertificateAdapter) Facts(ctx context.Context, brand id.BrandID, certID id.CertificateID) (*ports.CertificateFacts, error) {
	cert, err := a.certs.GetCertificate(ctx, brand, certID)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, nil
	}
	return &ports.CertificateFacts{
		Used:           cert.Used,
		ExpiryDate:     cert.ExpiryDate,
		FirstScannedAt: cert.FirstScannedAt,
	}, nil
}

func (a *CertificateAdapter) RecordFirstScan(ctx context.Context, brand id.BrandID, certID id.CertificateID, at time.Time) error {
	return a.certs.SetFirstScannedAt(ctx, brand, certID, at)
}

func (a *CertificateAdapter) Consume(ctx context.Context, brand id.BrandID, certID id.CertificateID) error {
	return a.certs.MarkUsed(ctx, brand, certID)
}

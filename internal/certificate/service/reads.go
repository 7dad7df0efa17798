package service

import (
	"context"
	"errors"
	"time"

	"sigil/internal/certificate/models"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/sentinel"
	"sigil/pkg/requestcontext"
)

// Read surface. Absence of a store, certificate, or batch always reads as
// nil/false/empty, never as an error, so callers can query without
// pre-checking existence. Only infrastructure failures surface as errors.

// GetCertificate returns one certificate, or nil when absent.
func (s *CertificateService) GetCertificate(ctx context.Context, brand id.BrandID, certID id.CertificateID) (*models.Certificate, error) {
	cert, err := s.certs.FindCertificate(ctx, brand, certID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificate")
	}
	return cert, nil
}

// IsUsed reports whether the certificate has been consumed; absent reads false.
func (s *CertificateService) IsUsed(ctx context.Context, brand id.BrandID, certID id.CertificateID) (bool, error) {
	cert, err := s.GetCertificate(ctx, brand, certID)
	if err != nil || cert == nil {
		return false, err
	}
	return cert.Used, nil
}

// GetFirstScannedAt returns the recorded first-scan time, or nil.
func (s *CertificateService) GetFirstScannedAt(ctx context.Context, brand id.BrandID, certID id.CertificateID) (*time.Time, error) {
	cert, err := s.GetCertificate(ctx, brand, certID)
	if err != nil || cert == nil {
		return nil, err
	}
	return cert.FirstScannedAt, nil
}

// IsExpired reports whether the certificate's lifetime has ended at the
// request time; absent reads false.
func (s *CertificateService) IsExpired(ctx context.Context, brand id.BrandID, certID id.CertificateID) (bool, error) {
	cert, err := s.GetCertificate(ctx, brand, certID)
	if err != nil || cert == nil {
		return false, err
	}
	return cert.IsExpired(requestcontext.Now(ctx)), nil
}

// GetExpiryDate returns the certificate's expiry, or nil when absent.
func (s *CertificateService) GetExpiryDate(ctx context.Context, brand id.BrandID, certID id.CertificateID) (*time.Time, error) {
	cert, err := s.GetCertificate(ctx, brand, certID)
	if err != nil || cert == nil {
		return nil, err
	}
	t := cert.ExpiryDate
	return &t, nil
}

// GetTimeUntilExpiry returns the remaining lifetime at the request time;
// zero once expired or when absent.
func (s *CertificateService) GetTimeUntilExpiry(ctx context.Context, brand id.BrandID, certID id.CertificateID) (time.Duration, error) {
	cert, err := s.GetCertificate(ctx, brand, certID)
	if err != nil || cert == nil {
		return 0, err
	}
	return cert.TimeUntilExpiry(requestcontext.Now(ctx)), nil
}

// GetAllIDs returns every certificate ID in the brand's store, mint order.
func (s *CertificateService) GetAllIDs(ctx context.Context, brand id.BrandID) ([]id.CertificateID, error) {
	ids, err := s.certs.AllIDs(ctx, brand)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificate ids")
	}
	return ids, nil
}

// ListIDs returns a page of certificate IDs in mint order.
func (s *CertificateService) ListIDs(ctx context.Context, brand id.BrandID, offset, limit int) ([]id.CertificateID, error) {
	ids, err := s.certs.ListIDs(ctx, brand, offset, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificate ids")
	}
	return ids, nil
}

// GetBatchInfo returns one batch with its member IDs, or nil when absent.
func (s *CertificateService) GetBatchInfo(ctx context.Context, brand id.BrandID, batchCode string) (*models.Batch, error) {
	batch, err := s.certs.FindBatch(ctx, brand, batchCode)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load batch")
	}
	return batch, nil
}

// GetBatchIDs returns the batch's member IDs in mint order; empty when absent.
func (s *CertificateService) GetBatchIDs(ctx context.Context, brand id.BrandID, batchCode string) ([]id.CertificateID, error) {
	batch, err := s.GetBatchInfo(ctx, brand, batchCode)
	if err != nil || batch == nil {
		return nil, err
	}
	return batch.MemberIDs, nil
}

// ListBatchCodes returns the store's batch codes in creation order.
func (s *CertificateService) ListBatchCodes(ctx context.Context, brand id.BrandID) ([]string, error) {
	codes, err := s.certs.ListBatchCodes(ctx, brand)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list batch codes")
	}
	return codes, nil
}

// GetExpiredIDs returns the IDs of certificates already expired at the
// request time, mint order.
func (s *CertificateService) GetExpiredIDs(ctx context.Context, brand id.BrandID) ([]id.CertificateID, error) {
	now := requestcontext.Now(ctx)
	return s.filterIDs(ctx, brand, func(cert *models.Certificate) bool {
		return cert.IsExpired(now)
	})
}

// GetIDsExpiringWithin returns the IDs of live certificates whose expiry
// falls inside the window starting at the request time.
func (s *CertificateService) GetIDsExpiringWithin(ctx context.Context, brand id.BrandID, window time.Duration) ([]id.CertificateID, error) {
	now := requestcontext.Now(ctx)
	deadline := now.Add(window)
	return s.filterIDs(ctx, brand, func(cert *models.Certificate) bool {
		return !cert.IsExpired(now) && !cert.ExpiryDate.After(deadline)
	})
}

func (s *CertificateService) filterIDs(ctx context.Context, brand id.BrandID, keep func(*models.Certificate) bool) ([]id.CertificateID, error) {
	certs, err := s.certs.Snapshot(ctx, brand)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan certificates")
	}
	var out []id.CertificateID
	for i := range certs {
		if keep(&certs[i]) {
			out = append(out, certs[i].ID)
		}
	}
	return out, nil
}

// VerifyIntegrity recomputes the deterministic identifier from the stored
// fields and checks it against the certificate's actual ID. True only for
// certificates minted on the primary path: fallback IDs depend on
// transaction entropy that is not reproducible from stored fields, so this
// is a self-consistency audit, not a security proof. Absent reads false.
func (s *CertificateService) VerifyIntegrity(ctx context.Context, brand id.BrandID, certID id.CertificateID) (bool, error) {
	cert, err := s.GetCertificate(ctx, brand, certID)
	if err != nil || cert == nil {
		return false, err
	}
	expected := s.generator.Primary(brand, cert.BatchCode, cert.SequenceNumber)
	return expected == cert.ID, nil
}

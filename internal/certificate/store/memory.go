// Package store persists per-brand certificate stores. Like the registry,
// state is partitioned by owning principal: a brand's certificates, batches,
// and nonce counter live in one partition and nothing can reach across.
//
// AppendBatch is the single commit point for minting: uniqueness and batch
// capacity are re-verified under the partition lock, so a mint call either
// lands whole or not at all.
package store

import (
	"context"
	"sync"

	"sigil/internal/certificate/models"
	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

// brandPartition is one brand's exclusive store state.
type brandPartition struct {
	certs      map[id.CertificateID]*models.Certificate
	ids        []id.CertificateID // insertion order across all batches
	batches    map[string]*models.Batch
	batchCodes []string // insertion order
	nonce      uint64
}

// InMemory implements the certificate store with per-brand map partitions.
type InMemory struct {
	mu     sync.RWMutex
	brands map[id.BrandID]*brandPartition
}

func NewInMemory() *InMemory {
	return &InMemory{brands: make(map[id.BrandID]*brandPartition)}
}

// CreateStore initializes an empty store for brand.
// Returns sentinel.ErrConflict if one already exists.
func (s *InMemory) CreateStore(_ context.Context, brand id.BrandID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.brands[brand]; ok {
		return sentinel.ErrConflict
	}
	s.brands[brand] = &brandPartition{
		certs:   make(map[id.CertificateID]*models.Certificate),
		batches: make(map[string]*models.Batch),
	}
	return nil
}

// StoreExists reports whether brand has initialized a store.
func (s *InMemory) StoreExists(_ context.Context, brand id.BrandID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.brands[brand]
	return ok, nil
}

// NextNonce increments and returns the brand's nonce counter. Monotonic for
// the life of the store; one fresh value per mint call seeds the fallback
// ID path.
func (s *InMemory) NextNonce(_ context.Context, brand id.BrandID) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.brands[brand]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	p.nonce++
	return p.nonce, nil
}

// HasCertificate reports whether certID is already taken in brand's store.
// A missing store reads as false so ID generation can run before InitStore
// errors are surfaced by the commit.
func (s *InMemory) HasCertificate(_ context.Context, brand id.BrandID, certID id.CertificateID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.brands[brand]
	if !ok {
		return false, nil
	}
	_, taken := p.certs[certID]
	return taken, nil
}

// AppendBatch atomically commits a mint: creates or extends the batch and
// inserts every certificate, updating the certificate table, the flat ID
// list, and the batch member list together.
//
// Returns sentinel.ErrNotFound if the store is absent and
// sentinel.ErrConflict if any certificate ID is already taken or the batch
// cannot hold len(certs) more members. On error nothing is modified.
func (s *InMemory) AppendBatch(_ context.Context, brand id.BrandID, spec models.BatchSpec, certs []*models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.brands[brand]
	if !ok {
		return sentinel.ErrNotFound
	}

	batch, exists := p.batches[spec.Code]
	if exists {
		if batch.CurrentCount+uint64(len(certs)) > batch.Capacity {
			return sentinel.ErrConflict
		}
	} else if uint64(len(certs)) > spec.Capacity {
		return sentinel.ErrConflict
	}
	seen := make(map[id.CertificateID]struct{}, len(certs))
	for _, cert := range certs {
		if _, taken := p.certs[cert.ID]; taken {
			return sentinel.ErrConflict
		}
		if _, dup := seen[cert.ID]; dup {
			return sentinel.ErrConflict
		}
		seen[cert.ID] = struct{}{}
	}

	if !exists {
		batch = &models.Batch{
			Code:       spec.Code,
			Capacity:   spec.Capacity,
			ExpiryDate: spec.ExpiryDate,
		}
		p.batches[spec.Code] = batch
		p.batchCodes = append(p.batchCodes, spec.Code)
	}
	for _, cert := range certs {
		c := *cert
		p.certs[c.ID] = &c
		p.ids = append(p.ids, c.ID)
		batch.MemberIDs = append(batch.MemberIDs, c.ID)
	}
	batch.CurrentCount += uint64(len(certs))
	return nil
}

// Execute atomically validates and mutates one certificate while holding the
// partition lock. Returns the certificate after mutation. Used for the
// mark-used and first-scan transitions.
func (s *InMemory) Execute(_ context.Context, brand id.BrandID, certID id.CertificateID,
	validate func(*models.Certificate) error,
	apply func(*models.Certificate),
) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.brands[brand]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cert, ok := p.certs[certID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(cert); err != nil {
		return nil, err
	}
	apply(cert)
	out := *cert
	return &out, nil
}

// FindCertificate returns one certificate, or sentinel.ErrNotFound.
func (s *InMemory) FindCertificate(_ context.Context, brand id.BrandID, certID id.CertificateID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.brands[brand]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cert, ok := p.certs[certID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *cert
	return &out, nil
}

// AllIDs returns every certificate ID in insertion order. A missing store
// reads as empty.
func (s *InMemory) AllIDs(_ context.Context, brand id.BrandID) ([]id.CertificateID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.brands[brand]
	if !ok {
		return nil, nil
	}
	out := make([]id.CertificateID, len(p.ids))
	copy(out, p.ids)
	return out, nil
}

// ListIDs returns a page of certificate IDs in insertion order.
func (s *InMemory) ListIDs(_ context.Context, brand id.BrandID, offset, limit int) ([]id.CertificateID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.brands[brand]
	if !ok {
		return nil, nil
	}
	if offset < 0 || offset >= len(p.ids) || limit <= 0 {
		return nil, nil
	}
	end := min(offset+limit, len(p.ids))
	out := make([]id.CertificateID, end-offset)
	copy(out, p.ids[offset:end])
	return out, nil
}

// FindBatch returns one batch, or sentinel.ErrNotFound.
func (s *InMemory) FindBatch(_ context.Context, brand id.BrandID, code string) (*models.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.brands[brand]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	batch, ok := p.batches[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *batch
	out.MemberIDs = make([]id.CertificateID, len(batch.MemberIDs))
	copy(out.MemberIDs, batch.MemberIDs)
	return &out, nil
}

// ListBatchCodes returns batch codes in creation order.
func (s *InMemory) ListBatchCodes(_ context.Context, brand id.BrandID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.brands[brand]
	if !ok {
		return nil, nil
	}
	out := make([]string, len(p.batchCodes))
	copy(out, p.batchCodes)
	return out, nil
}

// Snapshot returns copies of every certificate in insertion order. Backs the
// expiry-reporting reads without exposing partition internals.
func (s *InMemory) Snapshot(_ context.Context, brand id.BrandID) ([]models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.brands[brand]
	if !ok {
		return nil, nil
	}
	out := make([]models.Certificate, 0, len(p.ids))
	for _, cid := range p.ids {
		out = append(out, *p.certs[cid])
	}
	return out, nil
}

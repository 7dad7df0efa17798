package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sigil/internal/audit"
	"sigil/internal/certificate/idgen"
	certmetrics "sigil/internal/certificate/metrics"
	"sigil/internal/certificate/models"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/sentinel"
	"sigil/pkg/requestcontext"
)

const (
	// MaxBatchCapacity bounds both the quantity of one mint call and a
	// batch's declared capacity.
	MaxBatchCapacity = 999_999

	// maxIDRetries bounds the fallback regeneration loop. Exhausting it is
	// an integrity fault (CodeIDCollision), not a user error.
	maxIDRetries = 10
)

// CertificateService owns the per-brand certificate stores. Only the brand
// principal itself can mutate its store; the registry gate keeps
// unregistered principals from minting at all.
type CertificateService struct {
	certs     Store
	registry  BrandRegistry
	generator idgen.Generator
	logger    *slog.Logger
	metrics   *certmetrics.Metrics
	audit     *audit.Publisher
}

func NewCertificateService(certs Store, registry BrandRegistry, opts ...Option) *CertificateService {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.generator == nil {
		cfg.generator = idgen.Deterministic{}
	}
	return &CertificateService{
		certs:     certs,
		registry:  registry,
		generator: cfg.generator,
		logger:    cfg.logger,
		metrics:   cfg.metrics,
		audit:     cfg.audit,
	}
}

// InitStore creates an empty certificate store owned by the caller.
func (s *CertificateService) InitStore(ctx context.Context, caller id.BrandID) error {
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeInvalidArgument, "brand id is required")
	}
	if err := s.certs.CreateStore(ctx, caller); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeAlreadyExists, "certificate store already initialized for this brand")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to initialize certificate store")
	}

	if s.metrics != nil {
		s.metrics.StoresCreated.Inc()
	}
	if err := s.audit.Emit(ctx, audit.Event{
		Action: audit.ActionStoreInitialized,
		Brand:  caller.String(),
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record store initialization")
	}
	return nil
}

// MintBatchInput carries the mint parameters. Quantity is how many
// certificates this call creates. Capacity is the batch's declared total,
// consulted only when the batch code is new; zero means "same as Quantity".
type MintBatchInput struct {
	ProductName string
	Origin      string
	BatchCode   string
	MintDate    time.Time
	ExpiryDate  time.Time
	Quantity    uint64
	Capacity    uint64
}

// MintBatch mints Quantity certificates into the caller's store under the
// given batch code and returns their IDs in mint order.
//
// Preconditions, checked in order: the caller is registered with
// registryAdmin's registry; the caller's store exists; Quantity (and
// Capacity, when creating the batch) are within [1, MaxBatchCapacity];
// ExpiryDate is strictly after MintDate; the batch has room. The commit is
// all-or-nothing, so a capacity violation leaves no partial batch behind.
func (s *CertificateService) MintBatch(ctx context.Context, caller id.BrandID, registryAdmin id.AdminID, input MintBatchInput) ([]id.CertificateID, error) {
	start := time.Now()

	registered, err := s.registry.IsRegistered(ctx, registryAdmin, caller)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check brand registration")
	}
	if !registered {
		return nil, dErrors.New(dErrors.CodeNotAuthorized, "brand is not registered with this registry admin")
	}

	exists, err := s.certs.StoreExists(ctx, caller)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check certificate store")
	}
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "certificate store not initialized for this brand")
	}

	if input.Quantity < 1 || input.Quantity > MaxBatchCapacity {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "quantity must be between 1 and 999999")
	}
	capacity := input.Capacity
	if capacity == 0 {
		capacity = input.Quantity
	}
	if capacity > MaxBatchCapacity || capacity < input.Quantity {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "capacity must cover the quantity and stay within 999999")
	}
	if !input.ExpiryDate.After(input.MintDate) {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "expiry date must be after mint date")
	}
	if input.BatchCode == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "batch code is required")
	}

	// Sequence numbers continue where the batch left off; for a new batch
	// the first certificate is sequence 1.
	var sequenceBase uint64
	batch, err := s.certs.FindBatch(ctx, caller, input.BatchCode)
	switch {
	case err == nil:
		if batch.CurrentCount+input.Quantity > batch.Capacity {
			return nil, dErrors.New(dErrors.CodeCapacityExceeded, "batch cannot hold this many more certificates")
		}
		sequenceBase = batch.CurrentCount
	case errors.Is(err, sentinel.ErrNotFound):
		// new batch, created by the commit below
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load batch")
	}

	// One fresh transaction-scoped nonce seeds every fallback in this call.
	nonce, err := s.certs.NextNonce(ctx, caller)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance store nonce")
	}

	certs, err := s.generateCertificates(ctx, caller, input, sequenceBase, nonce)
	if err != nil {
		return nil, err
	}

	spec := models.BatchSpec{Code: input.BatchCode, Capacity: capacity, ExpiryDate: input.ExpiryDate}
	if err := s.certs.AppendBatch(ctx, caller, spec, certs); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeCapacityExceeded, "mint rejected at commit")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate store not initialized for this brand")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit mint")
	}

	ids := make([]id.CertificateID, len(certs))
	for i, cert := range certs {
		ids[i] = cert.ID
	}

	if s.metrics != nil {
		s.metrics.CertificatesMinted.Add(float64(len(ids)))
		s.metrics.ObserveMintBatch(start)
	}
	if err := s.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionBatchMinted,
		Principal: caller.String(),
		Brand:     caller.String(),
		BatchCode: input.BatchCode,
		Count:     len(ids),
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record mint")
	}

	s.logger.InfoContext(ctx, "batch minted",
		"brand", caller.String(),
		"batch_code", input.BatchCode,
		"count", len(ids),
	)
	return ids, nil
}

// generateCertificates derives one ID per certificate. The primary path is
// the reproducible keyed hash over (brand, batch code, sequence); a
// collision falls back to the higher-entropy tuple for up to maxIDRetries
// attempts before the call aborts with an integrity fault.
func (s *CertificateService) generateCertificates(ctx context.Context, brand id.BrandID, input MintBatchInput, sequenceBase, nonce uint64) ([]*models.Certificate, error) {
	certs := make([]*models.Certificate, 0, input.Quantity)
	pending := make(map[id.CertificateID]struct{}, input.Quantity)
	var attemptCounter uint64

	taken := func(cid id.CertificateID) (bool, error) {
		if _, ok := pending[cid]; ok {
			return true, nil
		}
		return s.certs.HasCertificate(ctx, brand, cid)
	}

	for i := uint64(0); i < input.Quantity; i++ {
		sequence := sequenceBase + i + 1
		cid := s.generator.Primary(brand, input.BatchCode, sequence)

		collided, err := taken(cid)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check id uniqueness")
		}
		if collided {
			cid, err = s.regenerate(ctx, brand, input, nonce, &attemptCounter, taken)
			if err != nil {
				return nil, err
			}
		}
		pending[cid] = struct{}{}

		certs = append(certs, &models.Certificate{
			ID:             cid,
			ProductName:    input.ProductName,
			Origin:         input.Origin,
			BatchCode:      input.BatchCode,
			MintDate:       input.MintDate,
			ExpiryDate:     input.ExpiryDate,
			SequenceNumber: sequence,
			Nonce:          nonce,
		})
	}
	return certs, nil
}

func (s *CertificateService) regenerate(ctx context.Context, brand id.BrandID, input MintBatchInput, nonce uint64, attemptCounter *uint64, taken func(id.CertificateID) (bool, error)) (id.CertificateID, error) {
	for attempt := 0; attempt < maxIDRetries; attempt++ {
		*attemptCounter++
		cid := s.generator.Fallback(brand, input.ProductName, input.BatchCode, input.MintDate, nonce, *attemptCounter)
		collided, err := taken(cid)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check id uniqueness")
		}
		if !collided {
			if s.metrics != nil {
				s.metrics.FallbackGenerations.Inc()
			}
			return cid, nil
		}
	}
	if s.metrics != nil {
		s.metrics.IDCollisionFaults.Inc()
	}
	s.logger.ErrorContext(ctx, "certificate id space exhausted retries",
		"brand", brand.String(),
		"batch_code", input.BatchCode,
	)
	return "", dErrors.New(dErrors.CodeIDCollision, "exhausted certificate id regeneration retries")
}

// MarkUsed irreversibly marks a certificate in the caller's store as used.
// Fails with CodeAlreadyUsed on a consumed certificate and CodeExpired once
// the certificate's expiry has passed. Both guards run inside the store's
// Execute transition, so concurrent callers race on the same lock and at
// most one MarkUsed succeeds per certificate.
func (s *CertificateService) MarkUsed(ctx context.Context, caller id.BrandID, certID id.CertificateID) error {
	now := requestcontext.Now(ctx)
	_, err := s.certs.Execute(ctx, caller, certID,
		func(cert *models.Certificate) error {
			if cert.Used {
				return sentinel.ErrAlreadyUsed
			}
			if cert.IsExpired(now) {
				return sentinel.ErrExpired
			}
			return nil
		},
		func(cert *models.Certificate) {
			cert.Used = true
		},
	)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			return dErrors.New(dErrors.CodeAlreadyUsed, "certificate already used")
		case errors.Is(err, sentinel.ErrExpired):
			return dErrors.New(dErrors.CodeExpired, "certificate has expired")
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark certificate used")
	}
	return nil
}

// SetFirstScannedAt records when the certificate was first scanned. The
// write is first-wins: once a scan time is recorded, later calls leave it
// untouched, so concurrent first scans cannot move the instant.
func (s *CertificateService) SetFirstScannedAt(ctx context.Context, caller id.BrandID, certID id.CertificateID, scannedAt time.Time) error {
	_, err := s.certs.Execute(ctx, caller, certID,
		func(*models.Certificate) error { return nil },
		func(cert *models.Certificate) {
			if cert.FirstScannedAt != nil {
				return
			}
			t := scannedAt
			cert.FirstScannedAt = &t
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set first scan time")
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sigil/internal/audit"
	brandmetrics "sigil/internal/brand/metrics"
	"sigil/internal/brand/models"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/sentinel"
	"sigil/pkg/requestcontext"
)

// RegistryService owns registry lifecycle and brand registration.
//
// Authority model: a registry belongs to exactly one admin principal, and
// only that principal may register brands into it. There is no ownership
// transfer; the single-writer rule is what lets registration stay a plain
// atomic insert.
type RegistryService struct {
	registries RegistryStore
	logger     *slog.Logger
	metrics    *brandmetrics.Metrics
	audit      *audit.Publisher
}

func NewRegistryService(registries RegistryStore, opts ...Option) *RegistryService {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &RegistryService{
		registries: registries,
		logger:     cfg.logger,
		metrics:    cfg.metrics,
		audit:      cfg.audit,
	}
}

// InitRegistry creates an empty registry owned by admin.
func (s *RegistryService) InitRegistry(ctx context.Context, admin id.AdminID) error {
	if admin.IsNil() {
		return dErrors.New(dErrors.CodeInvalidArgument, "admin id is required")
	}
	if err := s.registries.CreateRegistry(ctx, admin); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeAlreadyExists, "registry already initialized for this admin")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to initialize registry")
	}

	if s.metrics != nil {
		s.metrics.RegistriesCreated.Inc()
	}
	if err := s.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionRegistryInitialized,
		Principal: admin.String(),
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record registry initialization")
	}
	return nil
}

// RegisterBrand inserts a brand record into the registry at registryAdmin.
// Caller must be the registry's admin. The record and its reverse name-index
// entry are inserted atomically; a duplicate brand principal or a duplicate
// display name rejects the whole call.
func (s *RegistryService) RegisterBrand(ctx context.Context, caller, registryAdmin id.AdminID, brand id.BrandID, displayName string) (*models.BrandRecord, error) {
	start := time.Now()
	if registryAdmin.IsNil() || brand.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "registry admin and brand ids are required")
	}

	exists, err := s.registries.RegistryExists(ctx, registryAdmin)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check registry")
	}
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "registry not initialized for this admin")
	}
	if caller != registryAdmin {
		return nil, dErrors.New(dErrors.CodeNotAuthorized, "caller is not the registry admin")
	}

	record, err := models.NewBrandRecord(brand, displayName, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.registries.RegisterBrand(ctx, registryAdmin, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeAlreadyRegistered, "brand identity or display name already registered")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registry not initialized for this admin")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register brand")
	}

	if s.metrics != nil {
		s.metrics.BrandsRegistered.Inc()
		s.metrics.ObserveRegisterBrand(start)
	}
	if err := s.audit.Emit(ctx, audit.Event{
		Action:    audit.ActionBrandRegistered,
		Principal: caller.String(),
		Brand:     brand.String(),
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record brand registration")
	}

	s.logger.InfoContext(ctx, "brand registered",
		"registry_admin", registryAdmin.String(),
		"brand", brand.String(),
	)
	return record, nil
}

// IsRegistered reports whether brand has a record in the registry at admin.
// Absence of the registry itself reads as false, never as an error, so
// callers can query without pre-checking existence.
func (s *RegistryService) IsRegistered(ctx context.Context, admin id.AdminID, brand id.BrandID) (bool, error) {
	_, err := s.registries.FindBrand(ctx, admin, brand)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up brand")
	}
	return true, nil
}

// GetBrandInfo returns the brand's record, or nil when the registry or the
// record is absent.
func (s *RegistryService) GetBrandInfo(ctx context.Context, admin id.AdminID, brand id.BrandID) (*models.BrandRecord, error) {
	record, err := s.registries.FindBrand(ctx, admin, brand)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up brand")
	}
	return record, nil
}

// GetBrandName returns the brand's display name; ok is false when absent.
func (s *RegistryService) GetBrandName(ctx context.Context, admin id.AdminID, brand id.BrandID) (string, bool, error) {
	record, err := s.GetBrandInfo(ctx, admin, brand)
	if err != nil || record == nil {
		return "", false, err
	}
	return record.DisplayName, true, nil
}

// GetBrandAddress resolves a display name to the brand principal through the
// reverse index; ok is false when absent. This is the QR-resolution path.
func (s *RegistryService) GetBrandAddress(ctx context.Context, admin id.AdminID, name string) (id.BrandID, bool, error) {
	record, err := s.registries.FindBrandByName(ctx, admin, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.BrandID{}, false, nil
		}
		return id.BrandID{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve brand name")
	}
	return record.ID, true, nil
}

// Package service orchestrates per-brand certificate stores: initialization,
// batch minting with deterministic ID generation, the two monotonic
// certificate transitions (used, first-scanned), and the read surface.
package service

import (
	"context"
	"log/slog"

	"sigil/internal/audit"
	"sigil/internal/certificate/idgen"
	certmetrics "sigil/internal/certificate/metrics"
	"sigil/internal/certificate/models"
	id "sigil/pkg/domain"
)

// Store is the persistence contract for certificate stores. AppendBatch and
// Execute are the atomic commit points; every method signals facts with
// pkg/platform/sentinel errors.
type Store interface {
	CreateStore(ctx context.Context, brand id.BrandID) error
	StoreExists(ctx context.Context, brand id.BrandID) (bool, error)
	NextNonce(ctx context.Context, brand id.BrandID) (uint64, error)
	HasCertificate(ctx context.Context, brand id.BrandID, certID id.CertificateID) (bool, error)
	AppendBatch(ctx context.Context, brand id.BrandID, spec models.BatchSpec, certs []*models.Certificate) error
	Execute(ctx context.Context, brand id.BrandID, certID id.CertificateID,
		validate func(*models.Certificate) error,
		apply func(*models.Certificate)) (*models.Certificate, error)
	FindCertificate(ctx context.Context, brand id.BrandID, certID id.CertificateID) (*models.Certificate, error)
	AllIDs(ctx context.Context, brand id.BrandID) ([]id.CertificateID, error)
	ListIDs(ctx context.Context, brand id.BrandID, offset, limit int) ([]id.CertificateID, error)
	FindBatch(ctx context.Context, brand id.BrandID, code string) (*models.Batch, error)
	ListBatchCodes(ctx context.Context, brand id.BrandID) ([]string, error)
	Snapshot(ctx context.Context, brand id.BrandID) ([]models.Certificate, error)
}

// BrandRegistry is the slice of the registry the mint path needs: the
// is-this-brand-registered gate.
type BrandRegistry interface {
	IsRegistered(ctx context.Context, admin id.AdminID, brand id.BrandID) (bool, error)
}

type serviceConfig struct {
	logger    *slog.Logger
	metrics   *certmetrics.Metrics
	audit     *audit.Publisher
	generator idgen.Generator
}

// Option configures optional service dependencies.
type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

func WithMetrics(m *certmetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

func WithAuditPublisher(p *audit.Publisher) Option {
	return func(c *serviceConfig) { c.audit = p }
}

// WithGenerator replaces the ID generator. Tests use it to force collisions
// through the fallback and exhaustion paths.
func WithGenerator(g idgen.Generator) Option {
	return func(c *serviceConfig) { c.generator = g }
}

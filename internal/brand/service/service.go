// Package service orchestrates the brand registry: admin-gated registration
// and the option-style reads every other module resolves brands through.
package service

import (
	"context"
	"log/slog"

	"sigil/internal/audit"
	brandmetrics "sigil/internal/brand/metrics"
	"sigil/internal/brand/models"
	id "sigil/pkg/domain"
)

// RegistryStore is the persistence contract for brand registries. All
// mutating methods are atomic; stores signal facts with pkg/platform/sentinel
// errors which this service translates into coded domain errors.
type RegistryStore interface {
	CreateRegistry(ctx context.Context, admin id.AdminID) error
	RegistryExists(ctx context.Context, admin id.AdminID) (bool, error)
	RegisterBrand(ctx context.Context, admin id.AdminID, record *models.BrandRecord) error
	FindBrand(ctx context.Context, admin id.AdminID, brand id.BrandID) (*models.BrandRecord, error)
	FindBrandByName(ctx context.Context, admin id.AdminID, name string) (*models.BrandRecord, error)
}

type serviceConfig struct {
	logger  *slog.Logger
	metrics *brandmetrics.Metrics
	audit   *audit.Publisher
}

// Option configures optional service dependencies.
type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

func WithMetrics(m *brandmetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

func WithAuditPublisher(p *audit.Publisher) Option {
	return func(c *serviceConfig) { c.audit = p }
}

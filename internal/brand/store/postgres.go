package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"sigil/internal/brand/models"
	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

// Postgres persists brand registries in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE registries (
//	    admin_id   UUID PRIMARY KEY,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE brands (
//	    admin_id      UUID NOT NULL REFERENCES registries(admin_id),
//	    brand_id      UUID NOT NULL,
//	    display_name  TEXT NOT NULL,
//	    name_key      TEXT NOT NULL,
//	    registered_at TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (admin_id, brand_id),
//	    UNIQUE (admin_id, name_key)
//	);
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation
}

func (s *Postgres) CreateRegistry(ctx context.Context, admin id.AdminID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registries (admin_id, created_at) VALUES ($1, NOW())`,
		admin.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create registry: %w", err)
	}
	return nil
}

func (s *Postgres) RegistryExists(ctx context.Context, admin id.AdminID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM registries WHERE admin_id = $1)`,
		admin.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("registry exists: %w", err)
	}
	return exists, nil
}

func (s *Postgres) RegisterBrand(ctx context.Context, admin id.AdminID, record *models.BrandRecord) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM registries WHERE admin_id = $1)`,
		admin.String(),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("register brand: check registry: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}

	// The two unique constraints make the record and its name-index entry a
	// single atomic insert; either violation aborts the statement whole.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO brands (admin_id, brand_id, display_name, name_key, registered_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		admin.String(), record.ID.String(), record.DisplayName,
		strings.ToLower(record.DisplayName), record.RegisteredAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("register brand: %w", err)
	}
	return nil
}

func (s *Postgres) FindBrand(ctx context.Context, admin id.AdminID, brand id.BrandID) (*models.BrandRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT brand_id, display_name, registered_at
		 FROM brands WHERE admin_id = $1 AND brand_id = $2`,
		admin.String(), brand.String(),
	)
	return scanBrand(row)
}

func (s *Postgres) FindBrandByName(ctx context.Context, admin id.AdminID, name string) (*models.BrandRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT brand_id, display_name, registered_at
		 FROM brands WHERE admin_id = $1 AND name_key = $2`,
		admin.String(), strings.ToLower(strings.TrimSpace(name)),
	)
	return scanBrand(row)
}

func scanBrand(row *sql.Row) (*models.BrandRecord, error) {
	var (
		record  models.BrandRecord
		brandID string
	)
	if err := row.Scan(&brandID, &record.DisplayName, &record.RegisteredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find brand: %w", err)
	}
	parsed, err := id.ParseBrandID(brandID)
	if err != nil {
		return nil, fmt.Errorf("find brand: bad stored id: %w", err)
	}
	record.ID = parsed
	return &record, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"sigil/internal/certificate/models"
	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

// Postgres persists certificate stores in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE certificate_stores (
//	    brand_id   UUID PRIMARY KEY,
//	    nonce      BIGINT NOT NULL DEFAULT 0,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE batches (
//	    brand_id      UUID NOT NULL REFERENCES certificate_stores(brand_id),
//	    code          TEXT NOT NULL,
//	    capacity      BIGINT NOT NULL,
//	    current_count BIGINT NOT NULL DEFAULT 0,
//	    expiry_date   TIMESTAMPTZ NOT NULL,
//	    position      BIGSERIAL,
//	    PRIMARY KEY (brand_id, code)
//	);
//	CREATE TABLE certificates (
//	    brand_id        UUID NOT NULL REFERENCES certificate_stores(brand_id),
//	    cert_id         TEXT NOT NULL,
//	    product_name    TEXT NOT NULL,
//	    origin          TEXT NOT NULL,
//	    batch_code      TEXT NOT NULL,
//	    mint_date       TIMESTAMPTZ NOT NULL,
//	    expiry_date     TIMESTAMPTZ NOT NULL,
//	    sequence_number BIGINT NOT NULL,
//	    used            BOOLEAN NOT NULL DEFAULT FALSE,
//	    first_scanned_at TIMESTAMPTZ,
//	    nonce           BIGINT NOT NULL,
//	    position        BIGSERIAL,
//	    PRIMARY KEY (brand_id, cert_id)
//	);
//
// Mint calls lock the store row FOR UPDATE, which serializes writers per
// brand the same way the in-memory partition lock does.
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

func (s *Postgres) CreateStore(ctx context.Context, brand id.BrandID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO certificate_stores (brand_id, created_at) VALUES ($1, NOW())`,
		brand.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create certificate store: %w", err)
	}
	return nil
}

func (s *Postgres) StoreExists(ctx context.Context, brand id.BrandID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM certificate_stores WHERE brand_id = $1)`,
		brand.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store exists: %w", err)
	}
	return exists, nil
}

func (s *Postgres) NextNonce(ctx context.Context, brand id.BrandID) (uint64, error) {
	var nonce int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE certificate_stores SET nonce = nonce + 1 WHERE brand_id = $1 RETURNING nonce`,
		brand.String(),
	).Scan(&nonce)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("next nonce: %w", err)
	}
	return uint64(nonce), nil
}

func (s *Postgres) HasCertificate(ctx context.Context, brand id.BrandID, certID id.CertificateID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM certificates WHERE brand_id = $1 AND cert_id = $2)`,
		brand.String(), certID.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has certificate: %w", err)
	}
	return exists, nil
}

func (s *Postgres) AppendBatch(ctx context.Context, brand id.BrandID, spec models.BatchSpec, certs []*models.Certificate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append batch: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Serialize writers for this brand.
	var lockedBrand string
	err = tx.QueryRowContext(ctx,
		`SELECT brand_id FROM certificate_stores WHERE brand_id = $1 FOR UPDATE`,
		brand.String(),
	).Scan(&lockedBrand)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("append batch: lock store: %w", err)
	}

	var (
		capacity     int64
		currentCount int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT capacity, current_count FROM batches WHERE brand_id = $1 AND code = $2 FOR UPDATE`,
		brand.String(), spec.Code,
	).Scan(&capacity, &currentCount)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if uint64(len(certs)) > spec.Capacity {
			return sentinel.ErrConflict
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO batches (brand_id, code, capacity, current_count, expiry_date)
			 VALUES ($1, $2, $3, 0, $4)`,
			brand.String(), spec.Code, int64(spec.Capacity), spec.ExpiryDate,
		)
		if err != nil {
			return fmt.Errorf("append batch: create batch: %w", err)
		}
	case err != nil:
		return fmt.Errorf("append batch: load batch: %w", err)
	default:
		if uint64(currentCount)+uint64(len(certs)) > uint64(capacity) {
			return sentinel.ErrConflict
		}
	}

	for _, cert := range certs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO certificates
			     (brand_id, cert_id, product_name, origin, batch_code, mint_date,
			      expiry_date, sequence_number, used, first_scanned_at, nonce)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			brand.String(), cert.ID.String(), cert.ProductName, cert.Origin,
			cert.BatchCode, cert.MintDate, cert.ExpiryDate,
			int64(cert.SequenceNumber), cert.Used, cert.FirstScannedAt, int64(cert.Nonce),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("append batch: insert certificate: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE batches SET current_count = current_count + $3 WHERE brand_id = $1 AND code = $2`,
		brand.String(), spec.Code, len(certs),
	)
	if err != nil {
		return fmt.Errorf("append batch: bump count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append batch: commit: %w", err)
	}
	return nil
}

func (s *Postgres) Execute(ctx context.Context, brand id.BrandID, certID id.CertificateID,
	validate func(*models.Certificate) error,
	apply func(*models.Certificate),
) (*models.Certificate, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("execute: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		certSelect+` WHERE brand_id = $1 AND cert_id = $2 FOR UPDATE`,
		brand.String(), certID.String(),
	)
	cert, err := scanCertificate(row)
	if err != nil {
		return nil, err
	}

	if err := validate(cert); err != nil {
		return nil, err
	}
	apply(cert)

	_, err = tx.ExecContext(ctx,
		`UPDATE certificates SET used = $3, first_scanned_at = $4
		 WHERE brand_id = $1 AND cert_id = $2`,
		brand.String(), certID.String(), cert.Used, cert.FirstScannedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("execute: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("execute: commit: %w", err)
	}
	return cert, nil
}

const certSelect = `SELECT cert_id, product_name, origin, batch_code, mint_date,
    expiry_date, sequence_number, used, first_scanned_at, nonce FROM certificates`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	var (
		cert    models.Certificate
		certID  string
		seq     int64
		nonce   int64
		scanned sql.NullTime
	)
	err := row.Scan(&certID, &cert.ProductName, &cert.Origin, &cert.BatchCode,
		&cert.MintDate, &cert.ExpiryDate, &seq, &cert.Used, &scanned, &nonce)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan certificate: %w", err)
	}
	cert.ID = id.CertificateID(certID)
	cert.SequenceNumber = uint64(seq)
	cert.Nonce = uint64(nonce)
	if scanned.Valid {
		t := scanned.Time
		cert.FirstScannedAt = &t
	}
	return &cert, nil
}

func (s *Postgres) FindCertificate(ctx context.Context, brand id.BrandID, certID id.CertificateID) (*models.Certificate, error) {
	row := s.db.QueryRowContext(ctx,
		certSelect+` WHERE brand_id = $1 AND cert_id = $2`,
		brand.String(), certID.String(),
	)
	return scanCertificate(row)
}

func (s *Postgres) AllIDs(ctx context.Context, brand id.BrandID) ([]id.CertificateID, error) {
	return s.queryIDs(ctx,
		`SELECT cert_id FROM certificates WHERE brand_id = $1 ORDER BY position`,
		brand.String())
}

func (s *Postgres) ListIDs(ctx context.Context, brand id.BrandID, offset, limit int) ([]id.CertificateID, error) {
	if offset < 0 || limit <= 0 {
		return nil, nil
	}
	return s.queryIDs(ctx,
		`SELECT cert_id FROM certificates WHERE brand_id = $1 ORDER BY position OFFSET $2 LIMIT $3`,
		brand.String(), offset, limit)
}

func (s *Postgres) queryIDs(ctx context.Context, query string, args ...any) ([]id.CertificateID, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	var out []id.CertificateID
	for rows.Next() {
		var certID string
		if err := rows.Scan(&certID); err != nil {
			return nil, fmt.Errorf("list ids: %w", err)
		}
		out = append(out, id.CertificateID(certID))
	}
	return out, rows.Err()
}

func (s *Postgres) FindBatch(ctx context.Context, brand id.BrandID, code string) (*models.Batch, error) {
	var (
		batch    models.Batch
		capacity int64
		count    int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT code, capacity, current_count, expiry_date
		 FROM batches WHERE brand_id = $1 AND code = $2`,
		brand.String(), code,
	).Scan(&batch.Code, &capacity, &count, &batch.ExpiryDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find batch: %w", err)
	}
	batch.Capacity = uint64(capacity)
	batch.CurrentCount = uint64(count)

	batch.MemberIDs, err = s.queryIDs(ctx,
		`SELECT cert_id FROM certificates WHERE brand_id = $1 AND batch_code = $2 ORDER BY position`,
		brand.String(), code)
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (s *Postgres) ListBatchCodes(ctx context.Context, brand id.BrandID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code FROM batches WHERE brand_id = $1 ORDER BY position`,
		brand.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list batch codes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("list batch codes: %w", err)
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

func (s *Postgres) Snapshot(ctx context.Context, brand id.BrandID) ([]models.Certificate, error) {
	rows, err := s.db.QueryContext(ctx,
		certSelect+` WHERE brand_id = $1 ORDER BY position`,
		brand.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	defer rows.Close()

	var out []models.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cert)
	}
	return out, rows.Err()
}

//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema is the full ledger schema, applied once when the container starts.
const schema = `
CREATE TABLE registries (
    admin_id   UUID PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE brands (
    admin_id      UUID NOT NULL REFERENCES registries(admin_id),
    brand_id      UUID NOT NULL,
    display_name  TEXT NOT NULL,
    name_key      TEXT NOT NULL,
    registered_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (admin_id, brand_id),
    UNIQUE (admin_id, name_key)
);
CREATE TABLE certificate_stores (
    brand_id   UUID PRIMARY KEY,
    nonce      BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE batches (
    brand_id      UUID NOT NULL REFERENCES certificate_stores(brand_id),
    code          TEXT NOT NULL,
    capacity      BIGINT NOT NULL,
    current_count BIGINT NOT NULL DEFAULT 0,
    expiry_date   TIMESTAMPTZ NOT NULL,
    position      BIGSERIAL,
    PRIMARY KEY (brand_id, code)
);
CREATE TABLE certificates (
    brand_id        UUID NOT NULL REFERENCES certificate_stores(brand_id),
    cert_id         TEXT NOT NULL,
    product_name    TEXT NOT NULL,
    origin          TEXT NOT NULL,
    batch_code      TEXT NOT NULL,
    mint_date       TIMESTAMPTZ NOT NULL,
    expiry_date     TIMESTAMPTZ NOT NULL,
    sequence_number BIGINT NOT NULL,
    used            BOOLEAN NOT NULL DEFAULT FALSE,
    first_scanned_at TIMESTAMPTZ,
    nonce           BIGINT NOT NULL,
    position        BIGSERIAL,
    PRIMARY KEY (brand_id, cert_id)
);
CREATE TABLE audit_outbox (
    id         UUID PRIMARY KEY,
    action     TEXT NOT NULL,
    brand      TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMPTZ NOT NULL,
    payload    JSONB NOT NULL
);
`

// PostgresContainer wraps a testcontainers Postgres instance with the ledger
// schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("sigil_test"),
		tcpostgres.WithUsername("sigil"),
		tcpostgres.WithPassword("sigil"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// TruncateTables empties the given tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	stmt := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", "))
	_, err := p.DB.ExecContext(ctx, stmt)
	return err
}

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore writes events to an outbox table so a downstream shipper can
// publish them without coupling the ledger to a broker client.
//
// Schema:
//
//	CREATE TABLE audit_outbox (
//	    id         UUID PRIMARY KEY,
//	    action     TEXT NOT NULL,
//	    brand      TEXT NOT NULL DEFAULT '',
//	    occurred_at TIMESTAMPTZ NOT NULL,
//	    payload    JSONB NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_outbox (id, action, brand, occurred_at, payload)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.Action, event.Brand, event.Timestamp, payload,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByBrand(ctx context.Context, brand string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM audit_outbox WHERE brand = $1 ORDER BY occurred_at`,
		brand,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("unmarshal audit event: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

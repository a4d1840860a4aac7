package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSnapshotStore persists the two slots as rows of a key/value
// table with a JSONB payload:
//
//	CREATE TABLE IF NOT EXISTS adflow_slots (
//	    slot       TEXT PRIMARY KEY,
//	    payload    JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
type PostgresSnapshotStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSnapshotStore creates a Postgres-backed snapshot store.
func NewPostgresSnapshotStore(pool *pgxpool.Pool) *PostgresSnapshotStore {
	return &PostgresSnapshotStore{pool: pool}
}

// Load reads both slots. A missing clients slot means no durable state.
func (s *PostgresSnapshotStore) Load(ctx context.Context) (*Snapshot, error) {
	var clientsRaw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM adflow_slots WHERE slot = $1`, SlotClients,
	).Scan(&clientsRaw)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", SlotClients, err)
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(clientsRaw, &snap.Clients); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", SlotClients, err)
	}

	var reportsRaw []byte
	err = s.pool.QueryRow(ctx,
		`SELECT payload FROM adflow_slots WHERE slot = $1`, SlotReports,
	).Scan(&reportsRaw)
	if err == pgx.ErrNoRows {
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", SlotReports, err)
	}
	if err := json.Unmarshal(reportsRaw, &snap.Reports); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", SlotReports, err)
	}
	return snap, nil
}

// Save upserts both slots.
func (s *PostgresSnapshotStore) Save(ctx context.Context, snap *Snapshot) error {
	now := time.Now().UTC()

	write := func(slot string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", slot, err)
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO adflow_slots (slot, payload, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (slot) DO UPDATE SET
				payload = EXCLUDED.payload,
				updated_at = EXCLUDED.updated_at
		`, slot, raw, now)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", slot, err)
		}
		return nil
	}

	if err := write(SlotClients, snap.Clients); err != nil {
		return err
	}
	return write(SlotReports, snap.Reports)
}

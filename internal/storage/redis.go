package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adflowhq/adflow/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisSnapshotStore persists the two collections as JSON blobs under
// two string keys. This is the default backend: the closest server-side
// analogue of named key/value slots.
type RedisSnapshotStore struct {
	client *redis.Client
}

// NewRedisSnapshotStore creates a Redis-backed snapshot store.
func NewRedisSnapshotStore(client *redis.Client) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client}
}

// Load reads both slots. Missing keys mean no durable state; a missing
// reports slot alongside a present clients slot is treated as an empty
// report list.
func (s *RedisSnapshotStore) Load(ctx context.Context) (*Snapshot, error) {
	clientsRaw, err := s.client.Get(ctx, SlotClients).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", SlotClients, err)
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(clientsRaw, &snap.Clients); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", SlotClients, err)
	}

	reportsRaw, err := s.client.Get(ctx, SlotReports).Bytes()
	if err == redis.Nil {
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

// Save serializes both collections and writes both slots in one
// pipeline. Last writer wins across concurrent processes.
func (s *RedisSnapshotStore) Save(ctx context.Context, snap *Snapshot) error {
	clients := snap.Clients
	if clients == nil {
		clients = []*models.Client{}
	}
	reports := snap.Reports
	if reports == nil {
		reports = []*models.WeeklyReport{}
	}

	clientsRaw, err := json.Marshal(clients)
	if err != nil {
		return fmt.Errorf("failed to encode clients: %w", err)
	}
	reportsRaw, err := json.Marshal(reports)
	if err != nil {
		return fmt.Errorf("failed to encode reports: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, SlotClients, clientsRaw, 0)
	pipe.Set(ctx, SlotReports, reportsRaw, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"sync"

	"github.com/adflowhq/adflow/internal/models"
)

// Slot names for the two durable collections. The payload is a direct
// JSON serialization of the entity shapes; there is no schema version
// and no migration path.
const (
	SlotClients = "adflow:clients"
	SlotReports = "adflow:reports"
)

// Snapshot is the full object graph written on every store mutation.
type Snapshot struct {
	Clients []*models.Client       `json:"clients"`
	Reports []*models.WeeklyReport `json:"reports"`
}

// SnapshotStore is the persistence port of the client/report store.
// Load returns nil (not an error) when no durable state exists yet, so
// the caller can fall back to its seed. Save replaces both slots
// unconditionally.
type SnapshotStore interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

// MemorySnapshotStore keeps the snapshot in memory. Used in tests and
// as the degraded-mode fallback when no durable backend is reachable.
type MemorySnapshotStore struct {
	mu    sync.Mutex
	snap  *Snapshot
	saves int
}

// NewMemorySnapshotStore returns an empty in-memory snapshot store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

// Load returns the last saved snapshot, or nil if none was saved.
func (m *MemorySnapshotStore) Load(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, nil
}

// Save replaces the stored snapshot.
func (m *MemorySnapshotStore) Save(ctx context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *snap
	m.snap = &cp
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemorySnapshotStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

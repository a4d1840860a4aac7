// Package store holds the in-memory client and report collections and
// writes them through to the snapshot slots on every mutation.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/adflowhq/adflow/internal/metrics"
	"github.com/adflowhq/adflow/internal/models"
	"github.com/adflowhq/adflow/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrClientNotFound is returned when an operation names an unknown client.
var ErrClientNotFound = errors.New("client not found")

// Store owns all Client and WeeklyReport instances for the process
// lifetime. Collections are swapped atomically under the lock, so
// readers always observe a fully-formed previous-or-next state. Every
// mutation stages new slices, re-serializes them to the snapshot store,
// and commits to the in-memory state only once the write succeeded; a
// failed persist leaves the previous state in place.
type Store struct {
	mu         sync.RWMutex
	clients    []*models.Client
	reports    []*models.WeeklyReport
	selectedID string

	snapshots storage.SnapshotStore
	activity  storage.ActivityLog
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New constructs a store over the given persistence port. The activity
// log may be nil.
func New(snapshots storage.SnapshotStore, activity storage.ActivityLog, logger *zap.Logger) *Store {
	if activity == nil {
		activity = storage.NopActivityLog{}
	}
	return &Store{
		snapshots: snapshots,
		activity:  activity,
		logger:    logger,
	}
}

// SetMetrics attaches metric recording to the persist path.
func (s *Store) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Load rehydrates both collections from the snapshot store, falling
// back to the built-in seed when no durable state exists. The first
// client, if any, becomes the selection.
func (s *Store) Load(ctx context.Context) error {
	snap, err := s.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if snap == nil {
		s.clients = seedClients()
		s.reports = nil
		s.logger.Info("no durable state, seeded example client")
	} else {
		s.clients = snap.Clients
		s.reports = snap.Reports
		s.logger.Info("rehydrated state",
			zap.Int("clients", len(s.clients)),
			zap.Int("reports", len(s.reports)),
		)
	}
	if len(s.clients) > 0 {
		s.selectedID = s.clients[0].ID
	} else {
		s.selectedID = ""
	}
	return nil
}

// persist writes the staged object graph. Callers hold the write lock
// and commit the staged slices only when this returns nil.
func (s *Store) persist(ctx context.Context, clients []*models.Client, reports []*models.WeeklyReport) error {
	err := s.snapshots.Save(ctx, &storage.Snapshot{Clients: clients, Reports: reports})
	if s.metrics != nil {
		s.metrics.RecordSnapshotSave(err)
	}
	if err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	return nil
}

func (s *Store) record(ctx context.Context, t storage.ActivityType, clientID, detail string) {
	a := &storage.Activity{
		ID:        uuid.NewString(),
		Type:      t,
		ClientID:  clientID,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}
	if err := s.activity.Record(ctx, a); err != nil {
		s.logger.Warn("activity log write failed", zap.Error(err))
	}
}

// CreateClient validates the input, assigns a fresh identifier, appends
// the client and makes it the selection.
func (s *Store) CreateClient(ctx context.Context, in *models.ClientInput) (*models.Client, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c := &models.Client{
		ID:           uuid.NewString(),
		Name:         in.Name,
		BusinessType: in.BusinessType,
		Niche:        in.Niche,
		TargetRoas:   in.TargetRoas,
		TargetCpl:    in.TargetCpl,
		CreatedAt:    time.Now().UTC(),
		IsConnected:  false,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	clients := append(append([]*models.Client{}, s.clients...), c)
	if err := s.persist(ctx, clients, s.reports); err != nil {
		return nil, err
	}
	s.clients = clients
	s.selectedID = c.ID
	s.record(ctx, storage.ActivityClientCreated, c.ID, c.Name)
	return c, nil
}

// DeleteClient removes the client and cascades deletion of every report
// whose client id matches. If the deleted client was selected, the
// selection falls back to the first remaining client or to none.
// Confirmation is enforced at the API boundary; there is no undo.
func (s *Store) DeleteClient(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := make([]*models.Client, 0, len(s.clients))
	found := false
	for _, c := range s.clients {
		if c.ID == id {
			found = true
			continue
		}
		remaining = append(remaining, c)
	}
	if !found {
		return ErrClientNotFound
	}

	kept := make([]*models.WeeklyReport, 0, len(s.reports))
	for _, r := range s.reports {
		if r.ClientID != id {
			kept = append(kept, r)
		}
	}

	if err := s.persist(ctx, remaining, kept); err != nil {
		return err
	}
	s.clients = remaining
	s.reports = kept
	if s.selectedID == id {
		if len(remaining) > 0 {
			s.selectedID = remaining[0].ID
		} else {
			s.selectedID = ""
		}
	}
	s.record(ctx, storage.ActivityClientDeleted, id, "")
	return nil
}

// CreateReport validates the input, assigns a fresh identifier and
// prepends the report so the newest insertion sorts first. Reports are
// immutable once created.
func (s *Store) CreateReport(ctx context.Context, in *models.ReportInput) (*models.WeeklyReport, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasClient(in.ClientID) {
		return nil, ErrClientNotFound
	}

	r := in.Materialize(uuid.NewString())
	reports := append([]*models.WeeklyReport{r}, s.reports...)
	if err := s.persist(ctx, s.clients, reports); err != nil {
		return nil, err
	}
	s.reports = reports
	s.record(ctx, storage.ActivityReportCreated, r.ClientID, string(r.Platform))
	return r, nil
}

// ConnectClient links a client to its ad platform identifiers. All
// three connection fields are set together with the connected flag; no
// path sets only some of them. Identifiers are not validated remotely
// here; that happens lazily on the first data pull.
func (s *Store) ConnectClient(ctx context.Context, id, bmID, accountID string, level models.ConnectionLevel) (*models.Client, error) {
	if bmID == "" {
		return nil, models.ErrFieldRequired("meta_bm_id")
	}
	if accountID == "" {
		return nil, models.ErrFieldRequired("meta_account_id")
	}
	if !level.Valid() {
		return nil, models.ErrFieldInvalid("connection_level")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := make([]*models.Client, len(s.clients))
	var linked *models.Client
	for i, c := range s.clients {
		if c.ID != id {
			updated[i] = c
			continue
		}
		cp := *c
		cp.IsConnected = true
		cp.MetaBMID = bmID
		cp.MetaAccountID = accountID
		cp.ConnectionLevel = level
		updated[i] = &cp
		linked = &cp
	}
	if linked == nil {
		return nil, ErrClientNotFound
	}

	if err := s.persist(ctx, updated, s.reports); err != nil {
		return nil, err
	}
	s.clients = updated
	s.record(ctx, storage.ActivityClientLinked, id, accountID)
	return linked, nil
}

func (s *Store) hasClient(id string) bool {
	for _, c := range s.clients {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Clients returns all clients in insertion order.
func (s *Store) Clients() []*models.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.Client{}, s.clients...)
}

// Client returns a client by id.
func (s *Store) Client(id string) (*models.Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// ReportsForClient returns the client's reports sorted by start date
// descending.
func (s *Store) ReportsForClient(clientID string) []*models.WeeklyReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.WeeklyReport
	for _, r := range s.reports {
		if r.ClientID == clientID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.After(out[j].StartDate)
	})
	return out
}

// SelectedClientID returns the current selection, or "" when none.
func (s *Store) SelectedClientID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID
}

// SelectClient changes the selection.
func (s *Store) SelectClient(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasClient(id) {
		return ErrClientNotFound
	}
	s.selectedID = id
	return nil
}

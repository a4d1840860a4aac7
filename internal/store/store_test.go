package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adflowhq/adflow/internal/metrics"
	"github.com/adflowhq/adflow/internal/models"
	"github.com/adflowhq/adflow/internal/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func newTestStore(t *testing.T) (*Store, *storage.MemorySnapshotStore) {
	t.Helper()
	snaps := storage.NewMemorySnapshotStore()
	s := New(snaps, nil, zap.NewNop())
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s, snaps
}

func reportInput(clientID string) *models.ReportInput {
	return &models.ReportInput{
		ClientID:    clientID,
		StartDate:   time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Spend:       f64(100),
		Impressions: i64(1000),
		Clicks:      i64(20),
		Leads:       i64(10),
		Sales:       i64(2),
	}
}

func TestLoadSeedsWhenNoDurableState(t *testing.T) {
	s, _ := newTestStore(t)

	clients := s.Clients()
	if len(clients) != 1 {
		t.Fatalf("expected seed client, got %d clients", len(clients))
	}
	if clients[0].IsConnected {
		t.Error("seed client should not be connected")
	}
	if s.SelectedClientID() != clients[0].ID {
		t.Error("seed client should be selected")
	}
}

func TestLoadRehydratesSnapshot(t *testing.T) {
	ctx := context.Background()
	snaps := storage.NewMemorySnapshotStore()
	snaps.Save(ctx, &storage.Snapshot{
		Clients: []*models.Client{{ID: "c1", Name: "Acme"}, {ID: "c2", Name: "Globex"}},
		Reports: []*models.WeeklyReport{{ID: "r1", ClientID: "c1"}},
	})

	s := New(snaps, nil, zap.NewNop())
	if err := s.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(s.Clients()) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(s.Clients()))
	}
	if s.SelectedClientID() != "c1" {
		t.Errorf("selected = %q, want c1", s.SelectedClientID())
	}
}

func TestCreateClientDefaults(t *testing.T) {
	s, _ := newTestStore(t)

	c, err := s.CreateClient(context.Background(), &models.ClientInput{
		Name: "Acme Dental", BusinessType: "Local Service", Niche: "Dentistry",
		TargetRoas: 4, TargetCpl: 12,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID == "" {
		t.Error("client should get a fresh id")
	}
	if c.IsConnected {
		t.Error("new client must start disconnected")
	}
	if c.MetaAccountID != "" || c.MetaBMID != "" || c.ConnectionLevel != "" {
		t.Error("new client must carry no connection fields")
	}
	if s.SelectedClientID() != c.ID {
		t.Error("new client should become the selection")
	}
}

func TestCreateClientValidation(t *testing.T) {
	s, snaps := newTestStore(t)
	before := snaps.Saves()

	_, err := s.CreateClient(context.Background(), &models.ClientInput{})
	if err == nil {
		t.Fatal("expected validation error for missing name")
	}
	if field, ok := models.IsFieldError(err); !ok || field != "name" {
		t.Errorf("expected named error for field name, got %v", err)
	}
	if snaps.Saves() != before {
		t.Error("rejected input must not persist")
	}
}

func TestCreateReportDefaultsReachAndRevenue(t *testing.T) {
	s, _ := newTestStore(t)
	clientID := s.Clients()[0].ID

	r, err := s.CreateReport(context.Background(), reportInput(clientID))
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	if r.Reach != 0 || r.Revenue != 0 {
		t.Errorf("reach/revenue should default to 0, got %d/%v", r.Reach, r.Revenue)
	}
	if r.Platform != models.PlatformMeta {
		t.Errorf("platform should default to %q, got %q", models.PlatformMeta, r.Platform)
	}
}

func TestCreateReportRejectsMissingNumeric(t *testing.T) {
	s, _ := newTestStore(t)
	in := reportInput(s.Clients()[0].ID)
	in.Leads = nil

	_, err := s.CreateReport(context.Background(), in)
	if field, ok := models.IsFieldError(err); !ok || field != "leads" {
		t.Errorf("expected named error for leads, got %v", err)
	}
}

func TestCreateReportUnknownClient(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.CreateReport(context.Background(), reportInput("nope")); err != ErrClientNotFound {
		t.Errorf("expected ErrClientNotFound, got %v", err)
	}
}

func TestReportsForClientSortedByStartDateDesc(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	clientID := s.Clients()[0].ID

	older := reportInput(clientID)
	older.StartDate = time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)
	newer := reportInput(clientID)
	newer.StartDate = time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	// Insert older last so display order cannot ride on insertion order.
	if _, err := s.CreateReport(ctx, newer); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateReport(ctx, older); err != nil {
		t.Fatal(err)
	}

	got := s.ReportsForClient(clientID)
	if len(got) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(got))
	}
	if !got[0].StartDate.After(got[1].StartDate) {
		t.Error("reports should sort newest start date first")
	}
}

func TestDeleteClientCascades(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	keep, err := s.CreateClient(ctx, &models.ClientInput{Name: "Keep"})
	if err != nil {
		t.Fatal(err)
	}
	victim, err := s.CreateClient(ctx, &models.ClientInput{Name: "Victim"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateReport(ctx, reportInput(victim.ID)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateReport(ctx, reportInput(keep.ID)); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteClient(ctx, victim.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(s.ReportsForClient(victim.ID)) != 0 {
		t.Error("victim's reports must be cascade-deleted")
	}
	if len(s.ReportsForClient(keep.ID)) != 1 {
		t.Error("other clients' reports must survive")
	}
}

func TestDeleteSelectedClientFallsBack(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	first := s.Clients()[0]

	second, err := s.CreateClient(ctx, &models.ClientInput{Name: "Second"})
	if err != nil {
		t.Fatal(err)
	}
	// second is now selected.
	if err := s.DeleteClient(ctx, second.ID); err != nil {
		t.Fatal(err)
	}
	if s.SelectedClientID() != first.ID {
		t.Errorf("selection should fall back to first remaining, got %q", s.SelectedClientID())
	}
}

func TestDeleteOnlyClientClearsSelection(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.DeleteClient(ctx, s.Clients()[0].ID); err != nil {
		t.Fatal(err)
	}
	if got := s.SelectedClientID(); got != "" {
		t.Errorf("selection should be empty after deleting the only client, got %q", got)
	}
}

func TestConnectClientSetsAllThreeFields(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	id := s.Clients()[0].ID

	c, err := s.ConnectClient(ctx, id, "bm_1", "act_123", models.ConnectionLevelCampaign)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !c.IsConnected {
		t.Error("connect must flip IsConnected")
	}
	if c.MetaBMID != "bm_1" || c.MetaAccountID != "act_123" || c.ConnectionLevel != models.ConnectionLevelCampaign {
		t.Errorf("all three connection fields must be set, got %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("linked client should satisfy the connection invariant: %v", err)
	}
}

func TestConnectClientRejectsPartialIdentifiers(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	id := s.Clients()[0].ID

	if _, err := s.ConnectClient(ctx, id, "", "act_123", models.ConnectionLevelCampaign); err == nil {
		t.Error("missing business manager id must be rejected")
	}
	if _, err := s.ConnectClient(ctx, id, "bm_1", "act_123", "weekly"); err == nil {
		t.Error("unknown connection level must be rejected")
	}
	if c, _ := s.Client(id); c.IsConnected {
		t.Error("failed connect must leave the client untouched")
	}
}

func TestEveryMutationPersists(t *testing.T) {
	s, snaps := newTestStore(t)
	ctx := context.Background()

	base := snaps.Saves()
	c, _ := s.CreateClient(ctx, &models.ClientInput{Name: "A"})
	s.CreateReport(ctx, reportInput(c.ID))
	s.ConnectClient(ctx, c.ID, "bm", "act", models.ConnectionLevelAdset)
	s.DeleteClient(ctx, c.ID)

	if got := snaps.Saves() - base; got != 4 {
		t.Errorf("expected 4 snapshot writes for 4 mutations, got %d", got)
	}
}

// brokenSnapshotStore reports no durable state and can be flipped to
// reject writes.
type brokenSnapshotStore struct {
	saveErr error
}

func (b *brokenSnapshotStore) Load(ctx context.Context) (*storage.Snapshot, error) {
	return nil, nil
}

func (b *brokenSnapshotStore) Save(ctx context.Context, snap *storage.Snapshot) error {
	return b.saveErr
}

func newBrokenStore(t *testing.T) (*Store, *brokenSnapshotStore) {
	t.Helper()
	backend := &brokenSnapshotStore{}
	s := New(backend, nil, zap.NewNop())
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s, backend
}

func TestFailedPersistLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()

	t.Run("create client", func(t *testing.T) {
		s, backend := newBrokenStore(t)
		seeded := s.Clients()[0]
		backend.saveErr = errors.New("backend down")

		if _, err := s.CreateClient(ctx, &models.ClientInput{Name: "Ghost"}); err == nil {
			t.Fatal("expected persist failure")
		}
		if got := s.Clients(); len(got) != 1 {
			t.Errorf("failed create must not add the client, have %d", len(got))
		}
		if s.SelectedClientID() != seeded.ID {
			t.Errorf("selection moved to a client that was never persisted: %q", s.SelectedClientID())
		}
	})

	t.Run("create report", func(t *testing.T) {
		s, backend := newBrokenStore(t)
		id := s.Clients()[0].ID
		backend.saveErr = errors.New("backend down")

		if _, err := s.CreateReport(ctx, reportInput(id)); err == nil {
			t.Fatal("expected persist failure")
		}
		if got := s.ReportsForClient(id); len(got) != 0 {
			t.Errorf("failed create must not add the report, have %d", len(got))
		}
	})

	t.Run("connect client", func(t *testing.T) {
		s, backend := newBrokenStore(t)
		id := s.Clients()[0].ID
		backend.saveErr = errors.New("backend down")

		if _, err := s.ConnectClient(ctx, id, "bm_1", "act_123", models.ConnectionLevelCampaign); err == nil {
			t.Fatal("expected persist failure")
		}
		if c, _ := s.Client(id); c.IsConnected {
			t.Error("failed connect must leave the client disconnected")
		}
	})

	t.Run("delete client", func(t *testing.T) {
		s, backend := newBrokenStore(t)
		id := s.Clients()[0].ID
		backend.saveErr = errors.New("backend down")

		if err := s.DeleteClient(ctx, id); err == nil {
			t.Fatal("expected persist failure")
		}
		if _, ok := s.Client(id); !ok {
			t.Error("failed delete must keep the client")
		}
		if s.SelectedClientID() != id {
			t.Errorf("failed delete must keep the selection, got %q", s.SelectedClientID())
		}
	})
}

func TestPersistOutcomesRecorded(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewMetrics("storetest")

	s, backend := newBrokenStore(t)
	s.SetMetrics(m)

	if _, err := s.CreateClient(ctx, &models.ClientInput{Name: "A"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := testutil.ToFloat64(m.SnapshotSaves.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok saves = %v, want 1", got)
	}

	backend.saveErr = errors.New("backend down")
	if _, err := s.CreateClient(ctx, &models.ClientInput{Name: "B"}); err == nil {
		t.Fatal("expected persist failure")
	}
	if got := testutil.ToFloat64(m.SnapshotSaves.WithLabelValues("error")); got != 1 {
		t.Errorf("error saves = %v, want 1", got)
	}
}

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adflowhq/adflow/internal/insight"
	"github.com/adflowhq/adflow/internal/meta"
	"github.com/adflowhq/adflow/internal/metrics"
	"github.com/adflowhq/adflow/internal/models"
	"github.com/adflowhq/adflow/internal/storage"
	"github.com/adflowhq/adflow/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotConnected means the client has no linked ad account, so
	// there is nothing to pull.
	ErrNotConnected = errors.New("client is not connected to an ad account")

	// ErrNoReports means an analysis was requested for a client with an
	// empty report history.
	ErrNoReports = errors.New("client has no reports to analyze")

	// ErrReportNotFound means the named report does not belong to the
	// client.
	ErrReportNotFound = errors.New("report not found")
)

// AdsConnector is the slice of the ad-platform connector the sync
// service needs.
type AdsConnector interface {
	HasCredential() bool
	FetchInsights(ctx context.Context, adAccountID string) (*meta.Insights, error)
}

// InsightGenerator produces the funnel diagnosis and the report copy.
type InsightGenerator interface {
	AnalyzeTrafficData(ctx context.Context, client *models.Client, reports []*models.WeeklyReport) (*models.FullAnalysis, error)
	GenerateReportText(ctx context.Context, client *models.Client, report *models.WeeklyReport, derived insight.DerivedMetrics) (string, error)
}

// SyncService pulls the last seven days of delivery metrics for a
// connected client and records them as a regular weekly report.
type SyncService struct {
	store     *store.Store
	connector AdsConnector
	activity  storage.ActivityLog
	logger    *zap.Logger
	metrics   *metrics.Metrics

	// now is swapped in tests to pin the synthesized report window.
	now func() time.Time
}

// NewSyncService wires a sync service. activity and m may be nil.
func NewSyncService(st *store.Store, connector AdsConnector, activity storage.ActivityLog, logger *zap.Logger, m *metrics.Metrics) *SyncService {
	if activity == nil {
		activity = storage.NopActivityLog{}
	}
	return &SyncService{
		store:     st,
		connector: connector,
		activity:  activity,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// Sync fetches insights for one client and stores them as a new report.
// The platform only reports delivery metrics, so leads, sales and
// revenue are recorded as zero; the report window is the seven days
// ending now. A window with no delivery returns meta.ErrNoData and
// writes nothing.
func (s *SyncService) Sync(ctx context.Context, clientID string) (*models.WeeklyReport, error) {
	client, ok := s.store.Client(clientID)
	if !ok {
		return nil, store.ErrClientNotFound
	}
	if !client.IsConnected {
		return nil, ErrNotConnected
	}
	if !s.connector.HasCredential() {
		s.recordSync("error")
		return nil, meta.ErrNoCredential
	}

	insights, err := s.connector.FetchInsights(ctx, client.MetaAccountID)
	if err != nil {
		s.recordSync("error")
		return nil, err
	}
	if insights == nil {
		s.recordSync("no_data")
		return nil, meta.ErrNoData
	}

	input, err := reportFromInsights(client.ID, insights, s.now())
	if err != nil {
		s.recordSync("error")
		return nil, err
	}
	report, err := s.store.CreateReport(ctx, input)
	if err != nil {
		s.recordSync("error")
		return nil, err
	}

	s.recordSync("ok")
	if err := s.activity.Record(ctx, &storage.Activity{
		ID:        uuid.NewString(),
		Type:      storage.ActivitySyncCompleted,
		ClientID:  client.ID,
		Detail:    fmt.Sprintf("report %s", report.ID),
		Timestamp: time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to record sync activity", zap.Error(err))
	}
	s.logger.Info("synced ad account",
		zap.String("client_id", client.ID),
		zap.String("ad_account_id", client.MetaAccountID),
		zap.String("report_id", report.ID))
	return report, nil
}

func (s *SyncService) recordSync(status string) {
	if s.metrics != nil {
		s.metrics.RecordSync(status)
	}
}

// reportFromInsights converts the platform's string-typed metric values
// into a report input for the seven days ending at now.
func reportFromInsights(clientID string, in *meta.Insights, now time.Time) (*models.ReportInput, error) {
	spend, err := parseFloat(in.Spend)
	if err != nil {
		return nil, fmt.Errorf("bad spend value %q: %w", in.Spend, err)
	}
	impressions, err := parseInt(in.Impressions)
	if err != nil {
		return nil, fmt.Errorf("bad impressions value %q: %w", in.Impressions, err)
	}
	clicks, err := parseInt(in.Clicks)
	if err != nil {
		return nil, fmt.Errorf("bad clicks value %q: %w", in.Clicks, err)
	}
	reach, err := parseInt(in.Reach)
	if err != nil {
		return nil, fmt.Errorf("bad reach value %q: %w", in.Reach, err)
	}

	var zero int64
	var zeroF float64
	return &models.ReportInput{
		ClientID:    clientID,
		StartDate:   now.AddDate(0, 0, -7),
		EndDate:     now,
		Platform:    models.PlatformMeta,
		Spend:       &spend,
		Impressions: &impressions,
		Clicks:      &clicks,
		Reach:       &reach,
		Leads:       &zero,
		Sales:       &zero,
		Revenue:     &zeroF,
	}, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// AnalysisService runs the funnel diagnosis and the report-copy
// generation for one client.
type AnalysisService struct {
	store     *store.Store
	generator InsightGenerator
	activity  storage.ActivityLog
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewAnalysisService wires an analysis service. activity and m may be
// nil.
func NewAnalysisService(st *store.Store, generator InsightGenerator, activity storage.ActivityLog, logger *zap.Logger, m *metrics.Metrics) *AnalysisService {
	if activity == nil {
		activity = storage.NopActivityLog{}
	}
	return &AnalysisService{
		store:     st,
		generator: generator,
		activity:  activity,
		logger:    logger,
		metrics:   m,
	}
}

// Analyze runs the structured funnel diagnosis over the client's full
// report history. The result is returned, never persisted.
func (s *AnalysisService) Analyze(ctx context.Context, clientID string) (*models.FullAnalysis, error) {
	client, ok := s.store.Client(clientID)
	if !ok {
		return nil, store.ErrClientNotFound
	}
	reports := s.store.ReportsForClient(clientID)
	if len(reports) == 0 {
		return nil, ErrNoReports
	}

	analysis, err := s.generator.AnalyzeTrafficData(ctx, client, reports)
	if s.metrics != nil {
		s.metrics.RecordAnalysis("funnel", err)
	}
	if err != nil {
		return nil, err
	}

	if err := s.activity.Record(ctx, &storage.Activity{
		ID:        uuid.NewString(),
		Type:      storage.ActivityAnalysisRun,
		ClientID:  client.ID,
		Detail:    fmt.Sprintf("%d reports", len(reports)),
		Timestamp: time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to record analysis activity", zap.Error(err))
	}
	return analysis, nil
}

// ReportText generates the client-facing weekly report copy for one
// report. The derived figures in the prompt are computed here with the
// same formulas the dashboard summary uses.
func (s *AnalysisService) ReportText(ctx context.Context, clientID, reportID string) (string, error) {
	client, ok := s.store.Client(clientID)
	if !ok {
		return "", store.ErrClientNotFound
	}
	var report *models.WeeklyReport
	for _, r := range s.store.ReportsForClient(clientID) {
		if r.ID == reportID {
			report = r
			break
		}
	}
	if report == nil {
		return "", ErrReportNotFound
	}

	summary := Aggregate([]*models.WeeklyReport{report})
	text, err := s.generator.GenerateReportText(ctx, client, report, insight.DerivedMetrics{
		CPM: summary.CPM,
		CTR: summary.CTR,
		CPL: summary.CPL,
	})
	if s.metrics != nil {
		s.metrics.RecordAnalysis("report_text", err)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

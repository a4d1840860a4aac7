package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/adflowhq/adflow/internal/config"
	"github.com/adflowhq/adflow/internal/dashboard"
	"github.com/adflowhq/adflow/internal/database"
	"github.com/adflowhq/adflow/internal/insight"
	"github.com/adflowhq/adflow/internal/meta"
	"github.com/adflowhq/adflow/internal/metrics"
	"github.com/adflowhq/adflow/internal/models"
	"github.com/adflowhq/adflow/internal/storage"
	"github.com/adflowhq/adflow/internal/store"
	"go.uber.org/zap"
)

// Dependencies holds all external dependencies for the server.
// DB, Redis and ClickHouse are optional; the server degrades to
// in-memory state when the configured backend is unavailable.
type Dependencies struct {
	DB         *database.PostgresDB
	Redis      *database.RedisDB
	ClickHouse *database.ClickHouseDB
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Server wraps HTTP handlers and the dashboard services.
type Server struct {
	store     *store.Store
	connector *meta.Connector
	syncSvc   *dashboard.SyncService
	analysis  *dashboard.AnalysisService
	logger    *zap.Logger
	config    *config.Config
	metrics   *metrics.Metrics
}

// NewServer wires the state store, ad-platform connector and insight
// services, loads durable state and returns the route handler.
func NewServer(ctx context.Context, deps *Dependencies) (http.Handler, error) {
	snapshots := selectSnapshotStore(deps)

	var activity storage.ActivityLog = storage.NopActivityLog{}
	if deps.ClickHouse != nil {
		activity = storage.NewClickHouseActivityLog(deps.ClickHouse.Conn, deps.Logger)
	}

	st := store.New(snapshots, activity, deps.Logger)
	st.SetMetrics(deps.Metrics)
	if err := st.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load dashboard state: %w", err)
	}

	graph := meta.NewClient(deps.Config.Meta.GraphURL, deps.Logger, deps.Metrics)
	connector := meta.NewConnector(deps.Config.Meta, graph, deps.Logger)
	connector.Start(ctx)

	generator := insight.NewClient(deps.Config.Gemini, deps.Logger, deps.Metrics)

	s := &Server{
		store:     st,
		connector: connector,
		syncSvc:   dashboard.NewSyncService(st, connector, activity, deps.Logger, deps.Metrics),
		analysis:  dashboard.NewAnalysisService(st, generator, activity, deps.Logger, deps.Metrics),
		logger:    deps.Logger,
		config:    deps.Config,
		metrics:   deps.Metrics,
	}
	s.updateCounts()

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}

	// Client and report management
	mux.HandleFunc("/api/clients", s.handleClients)
	mux.HandleFunc("/api/clients/", s.handleClientByPath)

	// Ad platform connection flow
	mux.HandleFunc("/api/meta/login", s.handleMetaLogin)
	mux.HandleFunc("/api/meta/callback", s.handleMetaCallback)
	mux.HandleFunc("/api/meta/session", s.handleMetaSession)
	mux.HandleFunc("/api/meta/businesses", s.handleMetaBusinesses)
	mux.HandleFunc("/api/meta/businesses/", s.handleMetaBusinessByPath)
	mux.HandleFunc("/api/meta/accounts/", s.handleMetaAccountByPath)

	return mux, nil
}

// selectSnapshotStore picks the durable backend named in configuration,
// falling back to memory-only state when it is not available.
func selectSnapshotStore(deps *Dependencies) storage.SnapshotStore {
	switch deps.Config.Snapshot.Backend {
	case "postgres":
		if deps.DB != nil {
			return storage.NewPostgresSnapshotStore(deps.DB.Pool)
		}
		deps.Logger.Warn("postgres snapshot backend configured but unavailable, state will not survive restarts")
	case "redis":
		if deps.Redis != nil {
			return storage.NewRedisSnapshotStore(deps.Redis.Client)
		}
		deps.Logger.Warn("redis snapshot backend configured but unavailable, state will not survive restarts")
	case "memory":
	default:
		deps.Logger.Warn("unknown snapshot backend, using memory",
			zap.String("backend", deps.Config.Snapshot.Backend))
	}
	return storage.NewMemorySnapshotStore()
}

func (s *Server) updateCounts() {
	if s.metrics == nil {
		return
	}
	reports := 0
	for _, c := range s.store.Clients() {
		reports += len(s.store.ReportsForClient(c.ID))
	}
	s.metrics.UpdateStoreCounts(len(s.store.Clients()), reports)
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ---- Clients ----

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.jsonResponse(w, map[string]any{
			"clients":            s.store.Clients(),
			"selected_client_id": s.store.SelectedClientID(),
		})

	case http.MethodPost:
		var in models.ClientInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		client, err := s.store.CreateClient(r.Context(), &in)
		if err != nil {
			s.domainError(w, err)
			return
		}
		s.updateCounts()
		w.WriteHeader(http.StatusCreated)
		s.jsonResponse(w, client)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleClientByPath routes /api/clients/{id} and its subresources.
func (s *Server) handleClientByPath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/clients/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	id, action := rest, ""
	if idx := strings.Index(rest, "/"); idx != -1 {
		id, action = rest[:idx], rest[idx+1:]
	}

	switch action {
	case "":
		s.handleClient(w, r, id)
	case "select":
		s.handleSelectClient(w, r, id)
	case "reports":
		s.handleReports(w, r, id)
	case "stats":
		s.handleStats(w, r, id)
	case "connect":
		s.handleConnect(w, r, id)
	case "sync":
		s.handleSync(w, r, id)
	case "analysis":
		s.handleAnalysis(w, r, id)
	case "report-text":
		s.handleReportText(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleClient(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		client, ok := s.store.Client(id)
		if !ok {
			http.NotFound(w, r)
			return
		}
		s.jsonResponse(w, client)

	case http.MethodDelete:
		// Deleting a client removes its whole report history, so the
		// caller has to say it twice.
		if r.URL.Query().Get("confirm") != "true" {
			s.errorResponse(w, "deletion requires confirm=true", http.StatusBadRequest)
			return
		}
		if err := s.store.DeleteClient(r.Context(), id); err != nil {
			s.domainError(w, err)
			return
		}
		s.updateCounts()
		w.WriteHeader(http.StatusNoContent)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSelectClient(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.store.SelectClient(id); err != nil {
		s.domainError(w, err)
		return
	}
	s.jsonResponse(w, map[string]string{"selected_client_id": id})
}

// ---- Reports ----

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request, clientID string) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := s.store.Client(clientID); !ok {
			http.NotFound(w, r)
			return
		}
		s.jsonResponse(w, s.store.ReportsForClient(clientID))

	case http.MethodPost:
		var in models.ReportInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		in.ClientID = clientID
		report, err := s.store.CreateReport(r.Context(), &in)
		if err != nil {
			s.domainError(w, err)
			return
		}
		s.updateCounts()
		w.WriteHeader(http.StatusCreated)
		s.jsonResponse(w, report)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, clientID string) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := s.store.Client(clientID); !ok {
		http.NotFound(w, r)
		return
	}
	s.jsonResponse(w, dashboard.Aggregate(s.store.ReportsForClient(clientID)))
}

// ---- Connection, sync and analysis ----

type connectRequest struct {
	ConnectionLevel models.ConnectionLevel `json:"connection_level"`

	// Explicit identifiers bypass the login flow; both must be set.
	BusinessID  string `json:"business_id"`
	AdAccountID string `json:"ad_account_id"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request, clientID string) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	businessID, accountID := req.BusinessID, req.AdAccountID
	if businessID == "" && accountID == "" {
		var err error
		businessID, accountID, err = s.connector.Link()
		if err != nil {
			s.errorResponse(w, err.Error(), http.StatusConflict)
			return
		}
	}

	client, err := s.store.ConnectClient(r.Context(), clientID, businessID, accountID, req.ConnectionLevel)
	if err != nil {
		s.domainError(w, err)
		return
	}
	s.jsonResponse(w, client)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request, clientID string) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report, err := s.syncSvc.Sync(r.Context(), clientID)
	if errors.Is(err, meta.ErrNoData) {
		// Empty delivery window: informational, nothing was written.
		s.jsonResponse(w, map[string]string{
			"status":  "no_data",
			"message": err.Error(),
		})
		return
	}
	if err != nil {
		s.domainError(w, err)
		return
	}
	s.updateCounts()
	w.WriteHeader(http.StatusCreated)
	s.jsonResponse(w, map[string]any{
		"status": "ok",
		"report": report,
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request, clientID string) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	analysis, err := s.analysis.Analyze(r.Context(), clientID)
	if err != nil {
		s.domainError(w, err)
		return
	}
	s.jsonResponse(w, analysis)
}

func (s *Server) handleReportText(w http.ResponseWriter, r *http.Request, clientID string) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ReportID string `json:"report_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.ReportID == "" {
		s.errorResponse(w, "report_id required", http.StatusBadRequest)
		return
	}

	text, err := s.analysis.ReportText(r.Context(), clientID, req.ReportID)
	if err != nil {
		s.domainError(w, err)
		return
	}
	s.jsonResponse(w, map[string]string{"text": text})
}

// ---- Ad platform login flow ----

func (s *Server) handleMetaLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	authURL, err := s.connector.BeginLogin(r.Context())
	if err != nil {
		s.domainError(w, err)
		return
	}
	s.jsonResponse(w, map[string]string{"auth_url": authURL})
}

func (s *Server) handleMetaCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	if err := s.connector.CompleteLogin(r.Context(), q.Get("code"), q.Get("state")); err != nil {
		s.domainError(w, err)
		return
	}
	s.jsonResponse(w, map[string]string{"state": string(s.connector.Session().State())})
}

func (s *Server) handleMetaSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.jsonResponse(w, map[string]any{
		"state":          string(s.connector.Session().State()),
		"has_credential": s.connector.HasCredential(),
	})
}

func (s *Server) handleMetaBusinesses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	businesses, err := s.connector.Businesses(r.Context())
	if err != nil {
		s.domainError(w, err)
		return
	}
	s.jsonResponse(w, businesses)
}

func (s *Server) handleMetaBusinessByPath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/meta/businesses/")
	id, ok := strings.CutSuffix(rest, "/select")
	if !ok || id == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accounts, err := s.connector.SelectBusiness(r.Context(), id)
	if err != nil {
		s.domainError(w, err)
		return
	}
	s.jsonResponse(w, accounts)
}

func (s *Server) handleMetaAccountByPath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/meta/accounts/")
	id, ok := strings.CutSuffix(rest, "/select")
	if !ok || id == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.connector.SelectAccount(id); err != nil {
		s.domainError(w, err)
		return
	}
	s.jsonResponse(w, map[string]string{"state": string(s.connector.Session().State())})
}

// ---- Helper Methods ----

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// domainError maps service errors onto HTTP statuses. Upstream platform
// errors pass through with their original message.
func (s *Server) domainError(w http.ResponseWriter, err error) {
	if field, ok := models.IsFieldError(err); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": err.Error(),
			"field": field,
		})
		return
	}

	var graphErr *meta.GraphError
	switch {
	case errors.Is(err, store.ErrClientNotFound),
		errors.Is(err, dashboard.ErrReportNotFound):
		s.errorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, dashboard.ErrNotConnected),
		errors.Is(err, dashboard.ErrNoReports),
		errors.Is(err, meta.ErrInsecureTransport),
		errors.Is(err, meta.ErrLoginDeclined),
		errors.Is(err, meta.ErrNoCredential):
		s.errorResponse(w, err.Error(), http.StatusConflict)
	case errors.Is(err, meta.ErrSDKTimeout):
		s.errorResponse(w, err.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &graphErr):
		s.errorResponse(w, graphErr.Message, http.StatusBadGateway)
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.errorResponse(w, err.Error(), http.StatusInternalServerError)
	}
}

package insight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adflowhq/adflow/internal/config"
	"github.com/adflowhq/adflow/internal/models"
	"go.uber.org/zap"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.GeminiConfig{
		APIKey:        "test-key",
		BaseURL:       baseURL,
		AnalysisModel: "gemini-3-pro-preview",
		ReportModel:   "gemini-3-flash-preview",
	}, zap.NewNop(), nil)
}

func candidatePayload(t *testing.T, text string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func validAnalysis() models.FullAnalysis {
	plan := make([]models.ActionItem, 3)
	for i := range plan {
		plan[i] = models.ActionItem{
			ID:          "a1",
			Title:       "Refresh creatives",
			Description: "Swap the fatigued carousel for the new video set",
			Platform:    "Meta Ads",
			Priority:    models.PriorityHigh,
		}
	}
	return models.FullAnalysis{
		FunnelData: []models.FunnelMetric{
			{Name: "Impressions", Value: 1000, Percentage: 100, Label: "views", CostPerUnit: 0.1},
			{Name: "Leads", Value: 10, Percentage: 1, Label: "contacts", CostPerUnit: 10},
		},
		ActionPlan:        plan,
		MonthlyComparison: "CPL down 12% against the previous period",
		Summary:           "Attention is cheap, conversion is the bottleneck",
	}
}

func TestAnalyzeTrafficData(t *testing.T) {
	var gotPath, gotKey string
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		text, _ := json.Marshal(validAnalysis())
		w.Write(candidatePayload(t, string(text)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	client := &models.Client{ID: "1", Name: "Clinic", Niche: "Aesthetics", TargetCpl: 15}
	reports := []*models.WeeklyReport{{ID: "r1", ClientID: "1", Spend: 100, Leads: 10}}

	analysis, err := c.AnalyzeTrafficData(context.Background(), client, reports)
	if err != nil {
		t.Fatalf("AnalyzeTrafficData: %v", err)
	}
	if analysis.Summary == "" || len(analysis.ActionPlan) != 3 {
		t.Errorf("unexpected analysis: %+v", analysis)
	}
	if gotPath != "/models/gemini-3-pro-preview:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("key = %q", gotKey)
	}
	if gotReq.GenerationConfig == nil || gotReq.GenerationConfig.ResponseMimeType != "application/json" {
		t.Errorf("expected structured-output config, got %+v", gotReq.GenerationConfig)
	}
	if len(gotReq.Contents) != 1 || !strings.Contains(gotReq.Contents[0].Parts[0].Text, "Clinic") {
		t.Error("prompt does not mention the client")
	}
}

func TestAnalyzeTrafficDataRejectsShortActionPlan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bad := validAnalysis()
		bad.ActionPlan = bad.ActionPlan[:2]
		text, _ := json.Marshal(bad)
		w.Write(candidatePayload(t, string(text)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.AnalyzeTrafficData(context.Background(), &models.Client{Name: "Clinic"}, nil)
	if err == nil || !strings.Contains(err.Error(), "schema validation") {
		t.Fatalf("expected schema validation error, got %v", err)
	}
}

func TestAnalyzeTrafficDataServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.AnalyzeTrafficData(context.Background(), &models.Client{Name: "Clinic"}, nil)
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected service error to surface, got %v", err)
	}
}

func TestGenerateReportText(t *testing.T) {
	var gotPath string
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write(candidatePayload(t, "Great week! 🚀"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	report := &models.WeeklyReport{
		ID: "r1", ClientID: "1", Spend: 100, Impressions: 1000,
		Clicks: 20, Leads: 10, Sales: 2,
		StartDate: time.Now().AddDate(0, 0, -7), EndDate: time.Now(),
	}
	text, err := c.GenerateReportText(context.Background(), &models.Client{Name: "Clinic"}, report, DerivedMetrics{CPM: 100, CTR: 2, CPL: 10})
	if err != nil {
		t.Fatalf("GenerateReportText: %v", err)
	}
	if text != "Great week! 🚀" {
		t.Errorf("text = %q", text)
	}
	if gotPath != "/models/gemini-3-flash-preview:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotReq.GenerationConfig != nil {
		t.Error("report text should not request structured output")
	}
	prompt := gotReq.Contents[0].Parts[0].Text
	for _, want := range []string{"$100.00", "$10.00", "2.00%"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

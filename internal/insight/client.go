// Package insight calls the generative-language service for the funnel
// diagnosis and the client-facing report copy. The service is an
// external collaborator: no local fallback exists when it fails.
package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adflowhq/adflow/internal/config"
	"github.com/adflowhq/adflow/internal/metrics"
	"github.com/adflowhq/adflow/internal/models"
	"go.uber.org/zap"
)

// DerivedMetrics are computed by the caller with the aggregator's
// formulas and embedded in the prompt, so the numbers the model talks
// about match the dashboard's own arithmetic.
type DerivedMetrics struct {
	CPM float64
	CTR float64
	CPL float64
}

// Client is a Gemini REST client. Requests carry no timeout; a hung
// call surfaces as an indefinite loading state upstream.
type Client struct {
	httpc         *http.Client
	baseURL       string
	apiKey        string
	analysisModel string
	reportModel   string
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

// NewClient constructs an insight client. metrics may be nil.
func NewClient(cfg config.GeminiConfig, logger *zap.Logger, m *metrics.Metrics) *Client {
	return &Client{
		httpc:         &http.Client{},
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		analysisModel: cfg.AnalysisModel,
		reportModel:   cfg.ReportModel,
		logger:        logger,
		metrics:       m,
	}
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// generate posts one prompt to a model and returns the first candidate
// text.
func (c *Client) generate(ctx context.Context, model, prompt string, cfg *generationConfig) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: cfg,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	u := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if c.metrics != nil {
		c.metrics.RecordGeminiCall(model, time.Since(start))
	}
	if err != nil {
		return "", fmt.Errorf("insight service unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("malformed insight response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("insight service error: %s", out.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("insight service returned %s", resp.Status)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("insight service returned no candidates")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

// AnalyzeTrafficData asks for the structured funnel diagnosis of a
// client's full report history. The structured fields are validated
// against the expected shape; the prose fields are kept opaque.
func (c *Client) AnalyzeTrafficData(ctx context.Context, client *models.Client, reports []*models.WeeklyReport) (*models.FullAnalysis, error) {
	data, err := json.Marshal(reports)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reports: %w", err)
	}

	prompt := fmt.Sprintf(`You are a Digital Strategy Director. Analyze the sales funnel of the client %q.
Niche: %s.
Target CPL: $%.2f.

Weekly data: %s

Assess funnel health following this logic (funnel x-ray):
1. CPM (cost per thousand): is attention getting expensive?
2. CTR (click-through rate): is the ad drawing attention? (clicks / impressions)
3. REACH -> LEADS: if CPL is high, is the problem the creative or the audience?
4. LEADS -> SALES (closings): many leads but few sales points at lead quality or the client's sales team.

Produce a JSON object with:
- funnel_data: 5 stages (Impressions, Reach, Clicks, Leads, Sales).
- action_plan: 3 to 5 practical tasks for the account manager.
- summary: one short, direct diagnostic paragraph focused on CPM, CTR and final conversion.
- monthly_comparison: one sentence comparing against the previous period.`,
		client.Name, client.Niche, client.TargetCpl, data)

	text, err := c.generate(ctx, c.analysisModel, prompt, &generationConfig{
		ResponseMimeType: "application/json",
		ResponseSchema:   analysisSchema,
	})
	if err != nil {
		return nil, err
	}

	var analysis models.FullAnalysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		return nil, fmt.Errorf("malformed analysis payload: %w", err)
	}
	if err := analysis.Validate(); err != nil {
		return nil, fmt.Errorf("analysis failed schema validation: %w", err)
	}
	return &analysis, nil
}

// GenerateReportText asks for free-text weekly report copy for one
// report. The derived figures come from the caller, not the model.
func (c *Client) GenerateReportText(ctx context.Context, client *models.Client, report *models.WeeklyReport, derived DerivedMetrics) (string, error) {
	prompt := fmt.Sprintf(`Write a short weekly performance report for the WhatsApp of the client %q.
Key metrics:
- Spend: $%.2f
- CPM: $%.2f
- CTR: %.2f%%
- Clicks: %d
- Leads: %d
- CPL: $%.2f
- Closings: %d

Speak as a strategic partner. Highlight the wins and what we will optimize next. Use emojis.`,
		client.Name, report.Spend, derived.CPM, derived.CTR,
		report.Clicks, report.Leads, derived.CPL, report.Sales)

	return c.generate(ctx, c.reportModel, prompt, nil)
}

// analysisSchema constrains the structured analysis response.
var analysisSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"funnel_data": map[string]any{
			"type": "ARRAY",
			"items": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"name":          map[string]any{"type": "STRING"},
					"value":         map[string]any{"type": "NUMBER"},
					"percentage":    map[string]any{"type": "NUMBER"},
					"label":         map[string]any{"type": "STRING"},
					"cost_per_unit": map[string]any{"type": "NUMBER"},
				},
				"required": []string{"name", "value", "percentage", "label", "cost_per_unit"},
			},
		},
		"action_plan": map[string]any{
			"type": "ARRAY",
			"items": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"id":          map[string]any{"type": "STRING"},
					"title":       map[string]any{"type": "STRING"},
					"description": map[string]any{"type": "STRING"},
					"platform":    map[string]any{"type": "STRING"},
					"priority":    map[string]any{"type": "STRING"},
					"is_done":     map[string]any{"type": "BOOLEAN"},
				},
				"required": []string{"id", "title", "description", "platform", "priority", "is_done"},
			},
		},
		"monthly_comparison": map[string]any{"type": "STRING"},
		"summary":            map[string]any{"type": "STRING"},
	},
	"required": []string{"funnel_data", "action_plan", "monthly_comparison", "summary"},
}

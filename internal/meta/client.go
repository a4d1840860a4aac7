package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/adflowhq/adflow/internal/metrics"
	"go.uber.org/zap"
)

// DefaultGraphURL is the fixed Graph API base used unless overridden in
// configuration (tests point it at a local server).
const DefaultGraphURL = "https://graph.facebook.com/v18.0"

// GraphError is the error payload the Graph API embeds in a response.
// Its message is surfaced to the user verbatim.
type GraphError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func (e *GraphError) Error() string { return e.Message }

// Business is one business entity associated with a credential.
type Business struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AdAccount is one ad account under a business.
type AdAccount struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AccountID string `json:"account_id"`
}

// Insights is one row of account insight metrics. The Graph API returns
// numeric values as strings; parsing happens at the sync boundary.
type Insights struct {
	Spend       string `json:"spend"`
	Impressions string `json:"impressions"`
	Reach       string `json:"reach"`
	Clicks      string `json:"clicks"`
}

// Client is a minimal Graph API client. The access credential is passed
// per call as a query value against the fixed API base and version.
// Requests carry no timeout; a hung call surfaces as an indefinite
// loading state upstream.
type Client struct {
	httpc   *http.Client
	baseURL string
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewClient constructs a Graph API client. metrics may be nil.
func NewClient(baseURL string, logger *zap.Logger, m *metrics.Metrics) *Client {
	if baseURL == "" {
		baseURL = DefaultGraphURL
	}
	return &Client{
		httpc:   &http.Client{},
		baseURL: baseURL,
		logger:  logger,
		metrics: m,
	}
}

// get performs a Graph API GET and decodes the response into out. A
// remote error payload is returned as a *GraphError regardless of the
// HTTP status.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	u := c.baseURL + "/" + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build graph request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if c.metrics != nil {
		c.metrics.RecordGraphCall(endpoint, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("graph api unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read graph response: %w", err)
	}

	var envelope struct {
		Error *GraphError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		c.logger.Warn("graph api error",
			zap.String("endpoint", endpoint),
			zap.String("message", envelope.Error.Message),
		)
		return envelope.Error
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("graph api returned %s", resp.Status)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("malformed graph response: %w", err)
	}
	return nil
}

// ListBusinesses returns the businesses associated with the credential.
func (c *Client) ListBusinesses(ctx context.Context, accessToken string) ([]Business, error) {
	params := url.Values{}
	params.Set("access_token", accessToken)

	var resp struct {
		Data []Business `json:"data"`
	}
	if err := c.get(ctx, "businesses", "me/businesses", params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ListAdAccounts returns the ad accounts owned by a business.
func (c *Client) ListAdAccounts(ctx context.Context, businessID, accessToken string) ([]AdAccount, error) {
	params := url.Values{}
	params.Set("fields", "name,account_id")
	params.Set("access_token", accessToken)

	var resp struct {
		Data []AdAccount `json:"data"`
	}
	if err := c.get(ctx, "adaccounts", businessID+"/adaccounts", params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// FetchInsights returns the trailing-7-day insight metrics for an ad
// account, or nil when the account has no rows for the window. A nil
// result is not an error.
func (c *Client) FetchInsights(ctx context.Context, adAccountID, accessToken string) (*Insights, error) {
	params := url.Values{}
	params.Set("fields", "spend,impressions,clicks,reach")
	params.Set("date_preset", "last_7d")
	params.Set("access_token", accessToken)

	var resp struct {
		Data []Insights `json:"data"`
	}
	if err := c.get(ctx, "insights", adAccountID+"/insights", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return &resp.Data[0], nil
}

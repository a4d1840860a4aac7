// Package meta connects clients to the Meta ads platform: an OAuth
// login for the credential, business and ad account selection, and a
// trailing-7-day insights pull.
package meta

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adflowhq/adflow/internal/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

// Scopes the login requests: read-only ads access and business
// management.
var loginScopes = []string{"ads_read", "business_management"}

// Connector drives the connect flow and data pulls against the Graph
// API. One connection attempt is active at a time.
type Connector struct {
	oauth   *oauth2.Config
	graph   *Client
	session *Session
	logger  *zap.Logger

	ready atomic.Bool

	pollInterval time.Duration
	pollAttempts int

	mu         sync.Mutex
	stateToken string
}

// NewConnector builds a connector from the Meta app configuration.
func NewConnector(cfg config.MetaConfig, graph *Client, logger *zap.Logger) *Connector {
	return &Connector{
		oauth: &oauth2.Config{
			ClientID:     cfg.AppID,
			ClientSecret: cfg.AppSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       loginScopes,
			Endpoint:     facebook.Endpoint,
		},
		graph:        graph,
		session:      NewSession(),
		logger:       logger,
		pollInterval: readyPollInterval,
		pollAttempts: readyPollAttempts,
	}
}

// Start probes Graph API reachability in the background and flips the
// readiness flag once any response arrives. Login attempts wait on the
// flag with a bounded poll.
func (c *Connector) Start(ctx context.Context) {
	go func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.graph.baseURL, nil)
		if err != nil {
			return
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			c.logger.Warn("ads SDK probe failed", zap.Error(err))
			return
		}
		resp.Body.Close()
		c.ready.Store(true)
		c.logger.Info("ads SDK ready")
	}()
}

// MarkReady sets the readiness flag directly.
func (c *Connector) MarkReady() {
	c.ready.Store(true)
}

// Session exposes the active connection attempt.
func (c *Connector) Session() *Session {
	return c.session
}

// BeginLogin checks preconditions, waits for readiness and returns the
// authorization URL the user must visit. The attempt moves to
// AwaitingCredential.
func (c *Connector) BeginLogin(ctx context.Context) (string, error) {
	if !secureRedirect(c.oauth.RedirectURL) {
		return "", ErrInsecureTransport
	}
	if err := waitForFlag(ctx, c.ready.Load, c.pollInterval, c.pollAttempts); err != nil {
		return "", err
	}

	c.session.Begin()

	state := uuid.NewString()
	c.mu.Lock()
	c.stateToken = state
	c.mu.Unlock()

	return c.oauth.AuthCodeURL(state), nil
}

// CompleteLogin finishes the OAuth exchange from the callback. An empty
// code means the user declined; the attempt falls back to
// Unauthenticated.
func (c *Connector) CompleteLogin(ctx context.Context, code, state string) error {
	if code == "" {
		c.session.Fail()
		return ErrLoginDeclined
	}

	c.mu.Lock()
	expected := c.stateToken
	if expected != "" && state == expected {
		// One-time value: a replayed callback must not pass this check
		// again.
		c.stateToken = ""
	}
	c.mu.Unlock()
	if expected == "" || state != expected {
		c.session.Fail()
		return fmt.Errorf("login state mismatch; restart the connection")
	}

	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		c.session.Fail()
		return fmt.Errorf("credential exchange failed: %w", err)
	}
	return c.session.SetCredential(tok.AccessToken)
}

// Businesses fetches the businesses tied to the session credential.
func (c *Connector) Businesses(ctx context.Context) ([]Business, error) {
	token := c.session.Token()
	if token == "" {
		return nil, ErrNoCredential
	}
	businesses, err := c.graph.ListBusinesses(ctx, token)
	if err != nil {
		return nil, err
	}
	c.session.SetBusinesses(businesses)
	return businesses, nil
}

// SelectBusiness records the choice and fetches that business's ad
// accounts.
func (c *Connector) SelectBusiness(ctx context.Context, businessID string) ([]AdAccount, error) {
	if err := c.session.SelectBusiness(businessID); err != nil {
		return nil, err
	}
	token := c.session.Token()
	if token == "" {
		return nil, ErrNoCredential
	}
	accounts, err := c.graph.ListAdAccounts(ctx, businessID, token)
	if err != nil {
		return nil, err
	}
	c.session.SetAdAccounts(accounts)
	return accounts, nil
}

// SelectAccount records the ad account choice.
func (c *Connector) SelectAccount(accountID string) error {
	return c.session.SelectAccount(accountID)
}

// Link completes the attempt, returning the identifiers to attach to
// the client record.
func (c *Connector) Link() (businessID, accountID string, err error) {
	return c.session.Link()
}

// HasCredential reports whether a data pull can run in this session.
func (c *Connector) HasCredential() bool {
	return c.session.Token() != ""
}

// FetchInsights pulls the trailing-7-day metrics for an ad account
// using the session credential. A nil result means the window holds no
// data.
func (c *Connector) FetchInsights(ctx context.Context, adAccountID string) (*Insights, error) {
	token := c.session.Token()
	if token == "" {
		return nil, ErrNoCredential
	}
	return c.graph.FetchInsights(ctx, adAccountID, token)
}

// secureRedirect applies the login transport precondition: https, or a
// recognized local-development host.
func secureRedirect(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme == "https" {
		return true
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}

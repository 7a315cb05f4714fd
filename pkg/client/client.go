// Package client provides the trust-plane SDK for third-party apps: a
// thin HTTP wrapper over the admin API's token issuance, introspection,
// and rate-limit inspection endpoints, so an app backend doesn't have to
// hand-roll request signing and retry plumbing.
//
// Grounded on the teacher's pkg/sdk/client.go "code drop" client —
// generalized here from the governance-gateway ExecuteTool/CheckEntitlement/
// GetTrustScore surface to the trust plane's token/rate-limit surface.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config holds the SDK configuration.
type Config struct {
	// BaseURL is the trust-plane server's root URL (required).
	BaseURL string

	// AppID and ClientSecret authenticate token issuance requests.
	AppID        string
	ClientSecret string

	// Timeout bounds every request (default 10s).
	Timeout time.Duration
}

// Client is the trust-plane SDK client. Embed this in an app's backend to
// issue/refresh tokens and check rate-limit status without hand-rolling
// HTTP calls against the admin API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a Client against the given Config.
//
//	c := client.NewClient(client.Config{
//	    BaseURL:      "https://trustplane.example.com",
//	    AppID:        "app_123",
//	    ClientSecret: os.Getenv("APP_CLIENT_SECRET"),
//	})
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Issued mirrors the server's token issuance response shape.
type Issued struct {
	AccessToken  string   `json:"AccessToken"`
	RefreshToken string   `json:"RefreshToken"`
	TokenType    string   `json:"TokenType"`
	ExpiresIn    int64    `json:"ExpiresIn"`
	Scopes       []string `json:"Scopes"`
}

// IssueToken exchanges the app's client secret for a fresh access/refresh
// token pair bound to installationID.
func (c *Client) IssueToken(ctx context.Context, installationID string, scopes []string) (*Issued, error) {
	body := map[string]interface{}{
		"appId":          c.config.AppID,
		"installationId": installationID,
		"clientSecret":   c.config.ClientSecret,
	}
	if len(scopes) > 0 {
		body["scopes"] = scopes
	}
	var out Issued
	if err := c.postJSON(ctx, "/oauth/token", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshToken mints a new access token from a still-valid refresh token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Issued, error) {
	var out Issued
	err := c.postJSON(ctx, "/oauth/token/refresh", map[string]string{"refreshToken": refreshToken}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// IntrospectionResult reports whether a presented token is currently valid.
type IntrospectionResult struct {
	Active bool                   `json:"active"`
	Token  map[string]interface{} `json:"token,omitempty"`
}

// IntrospectToken checks whether accessToken is still active.
func (c *Client) IntrospectToken(ctx context.Context, accessToken string) (*IntrospectionResult, error) {
	var out IntrospectionResult
	if err := c.postJSON(ctx, "/oauth/token/introspect", map[string]string{"token": accessToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeToken revokes a token immediately; revoking an unknown or
// already-revoked token is not an error.
func (c *Client) RevokeToken(ctx context.Context, token string) error {
	return c.postJSON(ctx, "/oauth/token/revoke", map[string]string{"token": token}, nil)
}

// RateLimitStatus mirrors the server's quota.Result shape.
type RateLimitStatus struct {
	Allowed   bool      `json:"Allowed"`
	Remaining int       `json:"Remaining"`
	Limit     int       `json:"Limit"`
	ResetAt   time.Time `json:"ResetAt"`
}

// CheckRateLimit probes — without consuming — the current rate-limit
// status for (action, identifier).
func (c *Client) CheckRateLimit(ctx context.Context, action, identifier string) (*RateLimitStatus, error) {
	url := fmt.Sprintf("%s/ratelimits/%s/%s", c.config.BaseURL, action, identifier)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	var out RateLimitStatus
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("trustplane client: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("trustplane client: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(httpReq, out)
}

func (c *Client) do(httpReq *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("trustplane client: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("trustplane client: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("trustplane client: server returned %d: %s", resp.StatusCode, respBody)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("trustplane client: parse response: %w", err)
	}
	return nil
}

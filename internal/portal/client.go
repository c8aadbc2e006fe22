// Package portal is a client for the employee portal API, the system of
// record for personal data such as leave balances and payroll summaries.
package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/bureauhq/bureau/internal/log"
)

const (
	defaultTimeout = 10 * time.Second

	// Portal quota: sustained requests per second and allowed burst.
	defaultRateLimit = 5
	defaultBurst     = 10
)

var (
	// ErrAuthenticationRequired means the caller supplied no portal token
	// or the portal rejected it.
	ErrAuthenticationRequired = errors.New("portal authentication required")
	// ErrUnavailable means the portal could not be reached or returned a
	// server error.
	ErrUnavailable = errors.New("portal unavailable")
)

// Client calls the employee portal API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     log.Logger
}

// New creates a portal client. baseURL and apiKey are required.
func New(baseURL, apiKey string, logger log.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("portal base URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("portal API key is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		logger:     logger,
	}, nil
}

// Fetch retrieves one category of personal data for a user. token is the
// caller's portal session token and must be non-empty.
func (c *Client) Fetch(ctx context.Context, userID, dataType, token string) (string, error) {
	if token == "" {
		return "", ErrAuthenticationRequired
	}
	if userID == "" {
		return "", fmt.Errorf("user ID is required")
	}
	if dataType == "" {
		return "", fmt.Errorf("data type is required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("portal rate limit wait: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/user/%s/%s", c.baseURL, url.PathEscape(userID), url.PathEscape(dataType))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("portal request failed", "data_type", dataType, "error", err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrAuthenticationRequired
	case resp.StatusCode >= 500:
		c.logger.Warn("portal server error", "status", resp.StatusCode, "data_type", dataType)
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("portal API error (status %d): %s", resp.StatusCode, string(body))
	}

	return string(body), nil
}

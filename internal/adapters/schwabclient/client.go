// Package schwabclient implements ports.BrokerGateway against the Schwab
// Trader and Market Data REST APIs.
package schwabclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"stockpilot/internal/ports"
)

const (
	defaultBaseURL = "https://api.schwabapi.com"
	defaultTimeout = 15 * time.Second

	traderPath     = "/trader/v1"
	marketDataPath = "/marketdata/v1"
	oauthTokenPath = "/v1/oauth/token"
)

// Client implements the ports.BrokerGateway interface over HTTP.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     ports.Logger
	store      ports.CredentialStore
	baseURL    string
	apiKey     string
	appSecret  string

	mu    sync.Mutex // guards creds refresh
	creds *ports.Credentials
}

// Config holds configuration specific to the Schwab client adapter.
type Config struct {
	APIKey    string
	AppSecret string
	BaseURL   string
	Logger    ports.Logger
	Store     ports.CredentialStore
	Timeout   time.Duration
}

// New creates a new Schwab client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Schwab client")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("credential store is required for Schwab client")
	}
	if cfg.APIKey == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("%w: APIKey and AppSecret are required", ports.ErrConfigurationError)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "schwab-api",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cfg.Logger.Warn(context.Background(), "Circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	cfg.Logger.Info(context.Background(), "Schwab client configured", map[string]interface{}{"baseURL": baseURL})
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		logger:     cfg.Logger,
		store:      cfg.Store,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		appSecret:  cfg.AppSecret,
	}, nil
}

// handleError translates HTTP and transport failures into standardized ports
// errors. statusCode is zero when the request never reached the API.
func (c *Client) handleError(ctx context.Context, err error, operation string, statusCode int) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}
	if statusCode != 0 {
		fields["statusCode"] = statusCode
	}

	var mappedErr error
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		mappedErr = ports.ErrGatewayUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		mappedErr = ports.ErrTimeout
	case errors.Is(err, context.Canceled):
		mappedErr = ports.ErrContextCanceled
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		mappedErr = ports.ErrAuthenticationFailed
	case statusCode == http.StatusTooManyRequests:
		mappedErr = ports.ErrRateLimited
	case statusCode == http.StatusNotFound:
		mappedErr = ports.ErrNotFound
	case statusCode == http.StatusBadRequest:
		mappedErr = ports.ErrInvalidRequest
	case statusCode >= 500:
		mappedErr = ports.ErrGatewayUnavailable
	case strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") ||
		strings.Contains(err.Error(), "no such host"):
		mappedErr = ports.ErrConnectionFailed
	default:
		mappedErr = ports.ErrUnknown
	}

	finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// --- Token handling ---

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// accessToken returns a fresh access token, refreshing via the OAuth refresh
// grant when the stored token is expired.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.creds == nil {
		creds, err := c.store.Load(ctx)
		if err != nil {
			return "", fmt.Errorf("loading broker credentials: %w", err)
		}
		c.creds = creds
	}
	if !c.creds.Expired(now) {
		return c.creds.AccessToken, nil
	}

	refreshed, err := c.refreshToken(ctx, c.creds.RefreshToken)
	if err != nil {
		return "", err
	}
	c.creds = refreshed
	if err := c.store.Save(ctx, refreshed); err != nil {
		// The refreshed token is still usable for this run.
		c.logger.Warn(ctx, "Failed to persist refreshed credentials", map[string]interface{}{"error": err.Error()})
	}
	return c.creds.AccessToken, nil
}

func (c *Client) refreshToken(ctx context.Context, refreshToken string) (*ports.Credentials, error) {
	op := "RefreshToken"
	if refreshToken == "" {
		return nil, fmt.Errorf("%s failed: %w: no refresh token stored", op, ports.ErrAuthenticationFailed)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+oauthTokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, c.handleError(ctx, err, op, 0)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.apiKey + ":" + c.appSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.handleError(ctx, err, op, 0)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, c.handleError(ctx, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, truncate(body, 256)), op, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, c.handleError(ctx, fmt.Errorf("decoding token response: %w", err), op, 0)
	}
	if tok.AccessToken == "" {
		return nil, c.handleError(ctx, fmt.Errorf("token endpoint returned empty access token"), op, 0)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}

	c.logger.Info(ctx, "Access token refreshed", map[string]interface{}{"expiresIn": tok.ExpiresIn})
	return &ports.Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}, nil
}

// --- HTTP plumbing ---

type apiResponse struct {
	statusCode int
	body       []byte
	location   string
}

// do executes one authenticated request through the circuit breaker. Non-2xx
// responses come back as errors carrying the status code.
func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, payload interface{}) (*apiResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, operation, 0)
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("encoding request payload: %w", err), operation, 0)
		}
		bodyReader = bytes.NewReader(data)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			return nil, fmt.Errorf("reading response body: %w", err)
		}
		return &apiResponse{
			statusCode: resp.StatusCode,
			body:       body,
			location:   resp.Header.Get("Location"),
		}, nil
	})
	if err != nil {
		return nil, c.handleError(ctx, err, operation, 0)
	}

	resp := result.(*apiResponse)
	if resp.statusCode < 200 || resp.statusCode >= 300 {
		apiErr := fmt.Errorf("API returned %d: %s", resp.statusCode, truncate(resp.body, 256))
		return nil, c.handleError(ctx, apiErr, operation, resp.statusCode)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, operation, path string, query url.Values, out interface{}) error {
	resp, err := c.do(ctx, operation, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return c.handleError(ctx, fmt.Errorf("decoding response: %w", err), operation, 0)
	}
	return nil
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

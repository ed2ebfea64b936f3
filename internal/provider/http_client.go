package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/vehicle/snapshot"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/platform/circuit"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/platform/sentinel"
)

const defaultTimeout = 15 * time.Second

// HTTPSpecClient talks to the upstream spec provider API. Repeated upstream
// failures trip a circuit breaker so callers fail fast instead of queueing
// behind a dead dependency.
type HTTPSpecClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// SpecClientOption configures an HTTPSpecClient.
type SpecClientOption func(*HTTPSpecClient)

// WithSpecClientLogger sets the logger for breaker state transitions.
func WithSpecClientLogger(logger *slog.Logger) SpecClientOption {
	return func(c *HTTPSpecClient) {
		c.logger = logger
	}
}

// NewHTTPSpecClient constructs a spec provider client with a bounded timeout.
func NewHTTPSpecClient(baseURL, apiKey string, timeout time.Duration, opts ...SpecClientOption) *HTTPSpecClient {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	c := &HTTPSpecClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		breaker: circuit.New("spec-provider", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type specResponse struct {
	StatusCode StatusCode      `json:"statusCode"`
	EngineCode string          `json:"engineCode"`
	Document   json.RawMessage `json:"document"`
}

func (c *HTTPSpecClient) Fetch(ctx context.Context, reg domain.Registration) (*SpecResult, error) {
	if c.breaker.IsOpen() {
		return nil, fmt.Errorf("spec provider: %w: circuit open", sentinel.ErrUnavailable)
	}

	endpoint := fmt.Sprintf("%s/vehicles/%s/specification", c.baseURL, url.PathEscape(reg.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build spec request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.recordFailure(ctx)
		return nil, fmt.Errorf("spec provider: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		c.recordFailure(ctx)
		return nil, fmt.Errorf("spec provider: %w: status %d", sentinel.ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		// Client-side errors don't indicate an unhealthy upstream.
		return nil, fmt.Errorf("spec provider: unexpected status %d", resp.StatusCode)
	}

	var payload specResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode spec response: %w", err)
	}

	c.recordSuccess(ctx)

	result := &SpecResult{Status: payload.StatusCode, EngineCode: payload.EngineCode}
	if len(payload.Document) > 0 {
		result.Document = &snapshot.SpecDocument{Content: payload.Document}
	}
	return result, nil
}

func (c *HTTPSpecClient) recordFailure(ctx context.Context) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "circuit breaker opened", "breaker", c.breaker.Name())
	}
}

func (c *HTTPSpecClient) recordSuccess(ctx context.Context) {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "circuit breaker closed", "breaker", c.breaker.Name())
	}
}

// HTTPTyreClient talks to the secondary tyre fitment API.
type HTTPTyreClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPTyreClient constructs a tyre provider client with a bounded timeout.
func NewHTTPTyreClient(baseURL, apiKey string, timeout time.Duration) *HTTPTyreClient {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &HTTPTyreClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPTyreClient) Fetch(ctx context.Context, reg domain.Registration) ([]snapshot.TyreConfiguration, error) {
	endpoint := fmt.Sprintf("%s/vehicles/%s/tyres", c.baseURL, url.PathEscape(reg.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build tyre request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tyre provider: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tyre provider: unexpected status %d", resp.StatusCode)
	}

	var configurations []snapshot.TyreConfiguration
	if err := json.NewDecoder(resp.Body).Decode(&configurations); err != nil {
		return nil, fmt.Errorf("decode tyre response: %w", err)
	}
	return configurations, nil
}

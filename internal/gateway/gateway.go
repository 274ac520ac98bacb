// Package gateway provides the completion gateway client: a single
// request/response exchange with the diagnostic completion endpoint per
// submission.
//
// The client deliberately carries no retry, backoff, or timeout policy of
// its own; the caller's context governs cancellation, and retry only happens
// when a user explicitly resubmits.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Apiverde/ApiverdeDemo/internal/models"
)

// DefaultEndpointPath is the relative path of the diagnostic completion
// endpoint.
const DefaultEndpointPath = "/api/diagnostic"

// GatewayError describes a transport-level failure of the completion
// exchange: network error, non-success status, or an unusable envelope. It
// carries enough detail for logging; user-facing messages are mapped by the
// caller.
type GatewayError struct {
	Op         string // operation that failed, e.g. "post", "decode"
	StatusCode int    // HTTP status, 0 if the request never completed
	Err        error  // underlying cause, may be nil
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion gateway %s failed: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("completion gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Opts holds configuration for the gateway client.
type Opts struct {
	BaseURL      string
	EndpointPath string
	HTTPClient   *http.Client
}

// Option defines a configuration option for the gateway client.
type Option func(*Opts)

// WithBaseURL sets the base URL of the completion service.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithEndpointPath overrides the relative endpoint path.
func WithEndpointPath(p string) Option {
	return func(o *Opts) { o.EndpointPath = p }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client performs completion exchanges against the diagnostic endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a gateway client. A base URL is required.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base URL not set")
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = DefaultEndpointPath
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	endpoint := strings.TrimRight(cfg.BaseURL, "/") + cfg.EndpointPath
	slog.Debug("gateway.NewClient: created", "endpoint", endpoint)
	return &Client{endpoint: endpoint, httpClient: cfg.HTTPClient}, nil
}

// Complete sends the assembled prompt payload and returns the completion
// envelope. The call either resolves or rejects once.
func (c *Client) Complete(ctx context.Context, payload models.PromptPayload) (models.CompletionEnvelope, error) {
	if err := payload.Validate(); err != nil {
		return models.CompletionEnvelope{}, fmt.Errorf("invalid prompt payload: %w", err)
	}

	req := models.CompletionRequest{
		System: payload.System,
		Messages: []models.CompletionMessage{
			{Role: models.RoleUser, Content: payload.UserMessage},
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return models.CompletionEnvelope{}, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.CompletionEnvelope{}, &GatewayError{Op: "build", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("gateway.Complete: request failed", "endpoint", c.endpoint, "error", err)
		return models.CompletionEnvelope{}, &GatewayError{Op: "post", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little of the body so the failure is loggable.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("gateway.Complete: non-success status", "endpoint", c.endpoint, "status", resp.StatusCode, "body", string(detail))
		return models.CompletionEnvelope{}, &GatewayError{Op: "post", StatusCode: resp.StatusCode}
	}

	var envelope models.CompletionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		slog.Error("gateway.Complete: failed to decode envelope", "endpoint", c.endpoint, "error", err)
		return models.CompletionEnvelope{}, &GatewayError{Op: "decode", Err: err}
	}
	if len(envelope.Content) == 0 {
		slog.Error("gateway.Complete: empty envelope", "endpoint", c.endpoint)
		return models.CompletionEnvelope{}, &GatewayError{Op: "decode", Err: fmt.Errorf("envelope has no content blocks")}
	}

	slog.Debug("gateway.Complete: succeeded", "blocks", len(envelope.Content))
	return envelope, nil
}

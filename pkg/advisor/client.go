// Package advisor talks to the external document analysis service that
// proposes, but never decides, review outcomes.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	analyzePath       = "/v1/documents/analyze"
	maxResponseBytes  = 1 << 20
	defaultTimeout    = 20 * time.Second
	defaultRateLimit  = 2.0
	defaultBurst      = 4
	defaultMaxRetries = 2
	baseBackoff       = 250 * time.Millisecond
)

// ErrDisabled is returned when no endpoint is configured.
var ErrDisabled = errors.New("advisor disabled")

// Config controls the HTTP client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RateLimit  float64
	Burst      int
	MaxRetries int
}

// AnalyzeRequest describes the document to analyse.
type AnalyzeRequest struct {
	DocumentID   string `json:"documentId"`
	TemplateID   string `json:"templateId"`
	TemplateName string `json:"templateName"`
	FileName     string `json:"fileName"`
	MimeType     string `json:"mimeType"`
	DownloadURL  string `json:"downloadUrl,omitempty"`
}

// Suggestion is the raw oracle answer.
type Suggestion struct {
	SuggestedOutcome string   `json:"suggestedOutcome"`
	Confidence       float64  `json:"confidence"`
	Reasons          []string `json:"reasons"`
	SuggestedComment string   `json:"suggestedComment"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Client is an HTTP client for the analysis service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// NewClient validates the config and builds a client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrDisabled
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = defaultMaxRetries
	}
	return &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(limit), burst),
		maxRetries: retries,
	}, nil
}

// Analyze asks the service for a review suggestion.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*Suggestion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal analyze request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(baseBackoff * time.Duration(1<<(attempt-1))):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		suggestion, err := c.do(ctx, payload)
		if err == nil {
			return suggestion, nil
		}
		lastErr = err
		var re *retryableError
		if !errors.As(err, &re) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("advisor retries exhausted: %w", lastErr)
}

func (c *Client) do(ctx context.Context, payload []byte) (*Suggestion, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create analyze request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &retryableError{err: fmt.Errorf("analyze request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read analyze response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := truncate(string(body), 200)
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
			msg = eb.Error
		}
		err := fmt.Errorf("advisor: HTTP %d: %s", resp.StatusCode, msg)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &retryableError{err: err}
		}
		return nil, err
	}

	var suggestion Suggestion
	if err := json.Unmarshal(body, &suggestion); err != nil {
		return nil, fmt.Errorf("parse analyze response: %w", err)
	}
	suggestion.SuggestedOutcome = strings.ToUpper(strings.TrimSpace(suggestion.SuggestedOutcome))
	if suggestion.SuggestedOutcome == "" {
		return nil, fmt.Errorf("advisor: response missing suggestedOutcome")
	}
	return &suggestion, nil
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Package apiclient talks to the remote customer API. Every request runs
// through one retry loop with error classification and exponential backoff;
// the classification decides both the reported error kind and whether the
// attempt is worth repeating.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrorKind classifies a failed request. The set is closed; report
// generation matches on it exhaustively.
type ErrorKind string

const (
	KindNetwork    ErrorKind = "network_error"
	KindAuth       ErrorKind = "authentication_error"
	KindValidation ErrorKind = "validation_error"
	KindServer     ErrorKind = "server_error"
	KindRateLimit  ErrorKind = "rate_limit_error"
	KindUnknown    ErrorKind = "unknown_error"
)

// retryableKinds are error classifications worth another attempt.
var retryableKinds = map[ErrorKind]bool{
	KindNetwork:   true,
	KindServer:    true,
	KindRateLimit: true,
}

// RetryConfig tunes the retry loop. Total attempts = MaxRetries + 1.
type RetryConfig struct {
	MaxRetries       int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	BackoffFactor    float64
	RetryStatusCodes []int
}

// DefaultRetryConfig returns the standard retry tuning.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:       3,
		BaseDelay:        time.Second,
		MaxDelay:         60 * time.Second,
		BackoffFactor:    2.0,
		RetryStatusCodes: []int{429, 500, 502, 503, 504},
	}
}

// Outcome is the terminal result of submitting one request, after retries.
type Outcome struct {
	Success    bool      `json:"success"`
	Data       any       `json:"data,omitempty"`
	Error      string    `json:"error,omitempty"`
	Kind       ErrorKind `json:"error_type,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	RetryCount int       `json:"retry_count"`
}

// Client is an HTTP client for the customer API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      RetryConfig

	// sleep blocks between attempts; injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Client. An empty apiKey disables the Authorization header.
func New(baseURL, apiKey string, timeout time.Duration, retry RetryConfig) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		sleep:      sleepContext,
	}
}

// do performs one request with classification-driven retries.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, params url.Values) Outcome {
	reqURL := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return Outcome{
				Success: false,
				Error:   fmt.Sprintf("encode request body: %v", err),
				Kind:    KindUnknown,
			}
		}
	}

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return Outcome{
				Success:    false,
				Error:      fmt.Sprintf("build request: %v", err),
				Kind:       KindUnknown,
				RetryCount: attempt,
			}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			msg := classifyTransport(err)
			if attempt < c.retry.MaxRetries && c.shouldRetry(KindNetwork, 0) {
				if c.sleep(ctx, c.delay(attempt)) != nil {
					return Outcome{Success: false, Error: msg, Kind: KindNetwork, RetryCount: attempt}
				}
				continue
			}
			return Outcome{Success: false, Error: msg, Kind: KindNetwork, RetryCount: attempt}
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			msg := fmt.Sprintf("Network error: %v", readErr)
			if attempt < c.retry.MaxRetries && c.shouldRetry(KindNetwork, 0) {
				if c.sleep(ctx, c.delay(attempt)) != nil {
					return Outcome{Success: false, Error: msg, Kind: KindNetwork, RetryCount: attempt}
				}
				continue
			}
			return Outcome{Success: false, Error: msg, Kind: KindNetwork, RetryCount: attempt}
		}

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			var data any
			if len(respBody) > 0 {
				if err := json.Unmarshal(respBody, &data); err != nil {
					data = string(respBody)
				}
			}
			return Outcome{
				Success:    true,
				Data:       data,
				StatusCode: resp.StatusCode,
				RetryCount: attempt,
			}
		}

		kind, msg := classifyStatus(resp.StatusCode)
		if attempt < c.retry.MaxRetries && c.shouldRetry(kind, resp.StatusCode) {
			if c.sleep(ctx, c.delay(attempt)) != nil {
				return Outcome{Success: false, Error: msg, Kind: kind, StatusCode: resp.StatusCode, RetryCount: attempt}
			}
			continue
		}
		return Outcome{
			Success:    false,
			Error:      msg,
			Kind:       kind,
			StatusCode: resp.StatusCode,
			RetryCount: attempt,
		}
	}

	// Unreachable: the loop always returns. Kept to satisfy the compiler.
	return Outcome{
		Success:    false,
		Error:      "maximum retries exceeded",
		Kind:       KindUnknown,
		RetryCount: c.retry.MaxRetries,
	}
}

// shouldRetry reports whether a failure classification warrants another
// attempt. A status on the configured retry list forces a retry even for
// otherwise non-retryable kinds.
func (c *Client) shouldRetry(kind ErrorKind, statusCode int) bool {
	if retryableKinds[kind] {
		return true
	}
	for _, code := range c.retry.RetryStatusCodes {
		if code == statusCode {
			return true
		}
	}
	return false
}

// delay computes the exponential backoff delay for a 0-indexed attempt,
// capped at MaxDelay.
func (c *Client) delay(attempt int) time.Duration {
	d := time.Duration(float64(c.retry.BaseDelay) * math.Pow(c.retry.BackoffFactor, float64(attempt)))
	if d > c.retry.MaxDelay || d < 0 {
		return c.retry.MaxDelay
	}
	return d
}

// classifyStatus maps an HTTP status to an error kind and message.
func classifyStatus(statusCode int) (ErrorKind, string) {
	switch {
	case statusCode == http.StatusUnauthorized:
		return KindAuth, "Authentication failed"
	case statusCode == http.StatusForbidden:
		return KindAuth, "Access forbidden"
	case statusCode == http.StatusUnprocessableEntity:
		return KindValidation, "Validation error"
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimit, "Rate limit exceeded"
	case statusCode >= 500 && statusCode < 600:
		return KindServer, fmt.Sprintf("Server error: %d", statusCode)
	default:
		return KindUnknown, fmt.Sprintf("Unknown error: %d", statusCode)
	}
}

// classifyTransport maps a transport-level failure to a message. All
// transport failures are network errors.
func classifyTransport(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Request timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timeout"
	}
	return fmt.Sprintf("Network error: %v", err)
}

// sleepContext blocks for d or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

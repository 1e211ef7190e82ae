// Package partner provides the HTTP client for the partner assistant backend.
package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxErrorBody = 64 * 1024

// Client implements Transport over HTTP
type Client struct {
	baseURL string
	client  *http.Client
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient creates a partner client for baseURL.
// The HTTP client carries no overall timeout; streams are bounded by the
// caller's context.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 10
	transport.ResponseHeaderTimeout = 30 * time.Second

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Transport: transport},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Warmup performs the pre-flight exchange
func (c *Client) Warmup(ctx context.Context, req WarmupRequest) (*WarmupResponse, error) {
	resp, err := c.post(ctx, "/partner/warmup", req, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out WarmupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode warmup response: %w", err)
	}
	return &out, nil
}

// OpenStream posts a message and hands back the streamed body
func (c *Client) OpenStream(ctx context.Context, req MessageRequest) (io.ReadCloser, error) {
	resp, err := c.post(ctx, "/partner/message", req, "text/event-stream")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, accept string) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if accept == "text/event-stream" {
		httpReq.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

// decodeAPIError reads the optional {"detail": ...} error body
func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return apiErr
	}

	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return apiErr
	}

	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err == nil {
		apiErr.Detail = detail
		return apiErr
	}
	if string(body.Detail) != "null" {
		// structured details (validation errors) are passed through verbatim
		var buf bytes.Buffer
		if json.Compact(&buf, body.Detail) == nil {
			apiErr.Detail = buf.String()
		}
	}
	return apiErr
}

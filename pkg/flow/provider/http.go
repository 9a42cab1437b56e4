package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBytes bounds provider response bodies. Image payloads come
// back base64-encoded, so the bound is generous.
const maxResponseBytes = 32 << 20

// httpCore is the shared plumbing of the HTTP generation clients:
// endpoint, auth, retry, and the success/error envelope decoding.
type httpCore struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	retry   RetryConfig
}

// ClientOption configures an HTTP generation client.
type ClientOption func(*httpCore)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *httpCore) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithAPIKey sets the bearer token sent with each request.
func WithAPIKey(key string) ClientOption {
	return func(c *httpCore) { c.apiKey = key }
}

// WithTimeout sets the per-call timeout. A call that exceeds it fails
// like any other call failure.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *httpCore) { c.client.Timeout = d }
}

// WithRetryConfig replaces the default retry policy.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(c *httpCore) { c.retry = cfg }
}

// WithModel sets the model used when a request doesn't name one.
func WithModel(model string) ClientOption {
	return func(c *httpCore) { c.model = model }
}

// Wire shapes: {prompt?, images?, videos?, params} out,
// {success, data?, error?} back.

type callRequest struct {
	Prompt string   `json:"prompt,omitempty"`
	Images []string `json:"images,omitempty"`
	Videos []string `json:"videos,omitempty"`
	Params Params   `json:"params"`
}

type callData struct {
	ImageData    string         `json:"imageData,omitempty"`
	VideoURL     string         `json:"videoUrl,omitempty"`
	TextResponse string         `json:"textResponse,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type callFault struct {
	Message string `json:"message"`
}

type callResponse struct {
	Success bool       `json:"success"`
	Data    *callData  `json:"data,omitempty"`
	Error   *callFault `json:"error,omitempty"`
}

// request assembles the wire request, filling in the client's default
// model when the caller didn't pick one.
func (c *httpCore) request(prompt string, images, videos []string, params Params) callRequest {
	if params.Model == "" {
		params.Model = c.model
	}
	return callRequest{Prompt: prompt, Images: images, Videos: videos, Params: params}
}

// post runs one generation call with the client's retry policy.
func (c *httpCore) post(ctx context.Context, op, path string, body callRequest) (*Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: encode request: %w", c.name, op, err)
	}
	res := WithRetry(ctx, c.retry, func(ctx context.Context) (*Result, error) {
		return c.postOnce(ctx, op, path, payload)
	})
	return res.Value, res.Err
}

func (c *httpCore) postOnce(ctx context.Context, op, path string, payload []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s %s: build request: %w", c.name, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", c.name, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", c.name, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CallError{
			Provider:   c.name,
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    excerpt(raw),
		}
	}

	var decoded callResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%s %s: decode response: %w", c.name, op, err)
	}
	if !decoded.Success {
		msg := "unspecified provider failure"
		if decoded.Error != nil && decoded.Error.Message != "" {
			msg = decoded.Error.Message
		}
		return nil, &CallError{Provider: c.name, Op: op, Message: msg}
	}
	if decoded.Data == nil {
		return nil, fmt.Errorf("%s %s: %w", c.name, op, ErrEmptyResult)
	}

	return &Result{
		ImageData: decoded.Data.ImageData,
		VideoURL:  decoded.Data.VideoURL,
		Text:      decoded.Data.TextResponse,
		Metadata:  decoded.Data.Metadata,
	}, nil
}

// excerpt trims a response body to a readable error-message length.
func excerpt(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	const max = 240
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

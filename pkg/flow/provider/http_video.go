package provider

import (
	"context"
	"net/http"
	"time"
)

// HTTPVideoClient implements VideoGenerator against an HTTP service.
// Video renders take a while, so the default timeout is long; tune
// with WithTimeout.
type HTTPVideoClient struct {
	core httpCore
}

// NewHTTPVideoClient creates a video client for the service at
// baseURL (no trailing slash).
func NewHTTPVideoClient(baseURL string, opts ...ClientOption) *HTTPVideoClient {
	c := &HTTPVideoClient{
		core: httpCore{
			name:    "video",
			baseURL: baseURL,
			client:  &http.Client{Timeout: 10 * time.Minute},
			retry:   DefaultRetry,
		},
	}
	for _, opt := range opts {
		opt(&c.core)
	}
	return c
}

// Generate produces a video from text and/or already-uploaded image
// URLs.
func (c *HTTPVideoClient) Generate(ctx context.Context, req VideoRequest) (*Result, error) {
	return c.core.post(ctx, "generate", "/videos/generate",
		c.core.request(req.Prompt, req.ImageURLs, nil, req.Params))
}

// GenerateWithReferences produces a video guided by reference videos.
func (c *HTTPVideoClient) GenerateWithReferences(ctx context.Context, req VideoRequest) (*Result, error) {
	return c.core.post(ctx, "reference", "/videos/reference",
		c.core.request(req.Prompt, req.ImageURLs, req.VideoURLs, req.Params))
}

package provider

import (
	"context"
	"net/http"
	"time"
)

// HTTPImageClient implements ImageGenerator against an HTTP service
// exposing generate/edit/blend endpoints with the standard
// success/data/error envelope.
type HTTPImageClient struct {
	core httpCore
}

// NewHTTPImageClient creates an image client for the service at
// baseURL (no trailing slash).
func NewHTTPImageClient(baseURL string, opts ...ClientOption) *HTTPImageClient {
	c := &HTTPImageClient{
		core: httpCore{
			name:    "image",
			baseURL: baseURL,
			client:  &http.Client{Timeout: 2 * time.Minute},
			retry:   DefaultRetry,
		},
	}
	for _, opt := range opts {
		opt(&c.core)
	}
	return c
}

// Generate produces an image from text alone.
func (c *HTTPImageClient) Generate(ctx context.Context, req ImageRequest) (*Result, error) {
	return c.core.post(ctx, "generate", "/images/generate",
		c.core.request(req.Prompt, nil, nil, req.Params))
}

// Edit transforms a single input image.
func (c *HTTPImageClient) Edit(ctx context.Context, req ImageRequest) (*Result, error) {
	return c.core.post(ctx, "edit", "/images/edit",
		c.core.request(req.Prompt, req.Images, nil, req.Params))
}

// Blend combines several input images.
func (c *HTTPImageClient) Blend(ctx context.Context, req ImageRequest) (*Result, error) {
	return c.core.post(ctx, "blend", "/images/blend",
		c.core.request(req.Prompt, req.Images, nil, req.Params))
}

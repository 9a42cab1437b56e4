package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HTTPUploader implements Uploader by PUTting decoded payloads to an
// object-storage HTTP endpoint, the way S3-style presigned or
// proxy-fronted buckets accept writes. The returned public URL is the
// public base joined with the object key.
type HTTPUploader struct {
	endpoint   string
	publicBase string
	client     *http.Client
}

// UploaderOption configures an HTTPUploader.
type UploaderOption func(*HTTPUploader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) UploaderOption {
	return func(u *HTTPUploader) {
		if hc != nil {
			u.client = hc
		}
	}
}

// WithPublicBaseURL sets the base of returned URLs when reads go
// through a different host than writes (CDN in front of the bucket).
func WithPublicBaseURL(base string) UploaderOption {
	return func(u *HTTPUploader) { u.publicBase = strings.TrimSuffix(base, "/") }
}

// NewHTTPUploader creates an uploader writing to the given endpoint.
func NewHTTPUploader(endpoint string, opts ...UploaderOption) *HTTPUploader {
	endpoint = strings.TrimSuffix(endpoint, "/")
	u := &HTTPUploader{
		endpoint:   endpoint,
		publicBase: endpoint,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload implements Uploader. Already-fetchable URLs pass through
// unchanged; data URLs are decoded and written.
func (u *HTTPUploader) Upload(ctx context.Context, data string, meta Meta) (string, error) {
	if IsRemoteURL(data) {
		return data, nil
	}

	mediaType, raw, err := ParseDataURL(data)
	if err != nil {
		return "", err
	}
	key := objectKey(meta, mediaType, uuid.NewString())

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.endpoint+"/"+key, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("upload %s: build request: %w", key, err)
	}
	req.Header.Set("Content-Type", mediaType)
	req.ContentLength = int64(len(raw))

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload %s: HTTP %d: %w", key, resp.StatusCode, ErrUploadFailed)
	}
	return u.publicBase + "/" + key, nil
}

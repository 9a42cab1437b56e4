// Package storage provides the upload collaborator: durable storage
// for generated assets. The execution engine uses it as a pre-step for
// video generation, where providers require fetchable URLs rather than
// inline data.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for uploads.
var (
	// ErrUploadFailed indicates the storage service rejected the write.
	ErrUploadFailed = errors.New("upload failed")

	// ErrUnsupportedData indicates the payload was neither a data URL
	// nor an already-durable URL.
	ErrUnsupportedData = errors.New("unsupported upload payload")
)

// Meta describes what an uploaded object belongs to. Implementations
// use it to build object keys; none of the fields are required.
type Meta struct {
	ProjectID string
	NodeID    string
	Purpose   string
}

// Uploader stores a payload durably and returns its public URL. The
// payload is a data URL or an already-fetchable URL; implementations
// return fetchable URLs unchanged without re-uploading. An error means
// the payload is not durably stored.
type Uploader interface {
	Upload(ctx context.Context, data string, meta Meta) (string, error)
}

// IsRemoteURL reports whether the payload is already fetchable and
// needs no upload.
func IsRemoteURL(data string) bool {
	return strings.HasPrefix(data, "http://") || strings.HasPrefix(data, "https://")
}

// ParseDataURL splits a base64 data URL into its media type and
// decoded bytes.
func ParseDataURL(data string) (mediaType string, raw []byte, err error) {
	rest, ok := strings.CutPrefix(data, "data:")
	if !ok {
		return "", nil, fmt.Errorf("parse data url: no data: prefix: %w", ErrUnsupportedData)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("parse data url: no payload separator: %w", ErrUnsupportedData)
	}
	mediaType, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("parse data url: not base64-encoded: %w", ErrUnsupportedData)
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	raw, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("parse data url: decode: %w", err)
	}
	return mediaType, raw, nil
}

// extension maps a media type to an object-key suffix.
func extension(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	default:
		return ".bin"
	}
}

// objectKey builds a stable-prefix, unique-suffix key for an upload.
func objectKey(meta Meta, mediaType, unique string) string {
	parts := make([]string, 0, 4)
	if meta.ProjectID != "" {
		parts = append(parts, meta.ProjectID)
	}
	if meta.NodeID != "" {
		parts = append(parts, meta.NodeID)
	}
	if meta.Purpose != "" {
		parts = append(parts, meta.Purpose)
	}
	parts = append(parts, unique+extension(mediaType))
	return strings.Join(parts, "/")
}

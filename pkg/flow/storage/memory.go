package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryUploader implements Uploader in memory. Useful for tests and
// local development; objects live for the process lifetime and URLs
// use the mem:// scheme.
type MemoryUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	calls   int
}

// NewMemoryUploader creates an empty in-memory uploader.
func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// Upload implements Uploader.
func (u *MemoryUploader) Upload(ctx context.Context, data string, meta Meta) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if IsRemoteURL(data) {
		return data, nil
	}

	mediaType, raw, err := ParseDataURL(data)
	if err != nil {
		return "", err
	}

	url := "mem://" + objectKey(meta, mediaType, uuid.NewString())
	u.mu.Lock()
	u.objects[url] = raw
	u.types[url] = mediaType
	u.calls++
	u.mu.Unlock()
	return url, nil
}

// Object returns a stored object's bytes and media type.
func (u *MemoryUploader) Object(url string) (raw []byte, mediaType string, ok bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	raw, ok = u.objects[url]
	return raw, u.types[url], ok
}

// Calls returns how many uploads actually stored data (pass-through
// URLs don't count).
func (u *MemoryUploader) Calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

// Len returns the stored object count.
func (u *MemoryUploader) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.objects)
}

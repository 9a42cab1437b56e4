// Package project provides persistent storage for flow documents and
// the debounced sync loop that keeps a live graph store written through
// to a backend.
package project

import (
	"context"
	"errors"
	"time"
)

// Store persists project documents. Implementations must be safe for
// concurrent use.
type Store interface {
	// Save stores a document, overwriting any existing document with
	// the same id.
	Save(ctx context.Context, doc *Document) error

	// Load retrieves a document by project id.
	// Returns ErrNotFound if the project doesn't exist.
	Load(ctx context.Context, id string) (*Document, error)

	// Delete removes a project. Returns nil if it doesn't exist.
	Delete(ctx context.Context, id string) error

	// List returns metadata for every stored project, most recently
	// updated first. Returns an empty slice (not an error) when the
	// store is empty.
	List(ctx context.Context) ([]Info, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides project metadata without loading the full document.
type Info struct {
	ID        string
	Name      string
	Size      int64
	UpdatedAt time.Time
}

// Sentinel errors for project storage operations.
var (
	// ErrNotFound indicates the project doesn't exist.
	ErrNotFound = errors.New("project not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("project store closed")

	// ErrBusy indicates a sync transition that the state machine
	// forbids, such as hydrating while a write is in flight.
	ErrBusy = errors.New("sync busy")
)

package project

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/atelierhq/easelflow/pkg/flow"
)

// SchemaVersion is the current document format version. Increment when
// making breaking changes to the document structure.
const SchemaVersion = 1

// Document is the persisted form of one project: identity plus the full
// graph snapshot. Transient node state (run status, errors) is excluded
// by the snapshot shape and never stored.
type Document struct {
	Version   int           `json:"version"`
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Graph     flow.Snapshot `json:"graph"`
}

// New creates a document for the given project wrapping the snapshot.
func New(id, name string, snap flow.Snapshot) *Document {
	return &Document{
		Version:   SchemaVersion,
		ID:        id,
		Name:      name,
		UpdatedAt: time.Now().UTC(),
		Graph:     snap,
	}
}

// Marshal serializes the document to JSON.
func (d *Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// Unmarshal deserializes a document from JSON, rejecting versions newer
// than this build understands.
func Unmarshal(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if d.Version > SchemaVersion {
		return nil, fmt.Errorf("document version %d is newer than supported %d", d.Version, SchemaVersion)
	}
	return &d, nil
}

// canonical is the value-identity form used to decide whether a
// snapshot write would be redundant. UpdatedAt is excluded: a document
// differing only by timestamp is the same value.
func (d *Document) canonical() ([]byte, error) {
	shadow := Document{
		Version: d.Version,
		ID:      d.ID,
		Name:    d.Name,
		Graph:   d.Graph,
	}
	return json.Marshal(&shadow)
}

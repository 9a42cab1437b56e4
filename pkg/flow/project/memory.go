package project

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory project store for testing and ephemeral
// sessions. Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]storedDocument
	closed bool
}

// storedDocument holds the serialized document with metadata for List.
// Storing bytes rather than the struct keeps the memory backend honest:
// loads go through the same decode path as the durable backends.
type storedDocument struct {
	name      string
	data      []byte
	updatedAt time.Time
}

// NewMemoryStore creates a new in-memory project store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]storedDocument),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, doc *Document) error {
	payload, err := doc.Marshal()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	m.data[doc.ID] = storedDocument{
		name:      doc.Name,
		data:      payload,
		updatedAt: time.Now().UTC(),
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(ctx context.Context, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	stored, ok := m.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return Unmarshal(stored.data)
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.data, id)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]Info, 0, len(m.data))
	for id, stored := range m.data {
		infos = append(infos, Info{
			ID:        id,
			Name:      stored.name,
			Size:      int64(len(stored.data)),
			UpdatedAt: stored.updatedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	return infos, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the number of stored projects. Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

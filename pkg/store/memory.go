package store

import (
	"bytes"
	"sort"
	"sync"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

// Put stores a copy of e.
func (m *MemoryStore) Put(e *Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	c := *e
	c.Blob = bytes.Clone(e.Blob)
	c.Size = len(e.Blob)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.Name] = &c
	return nil
}

// Get returns a copy of the named entry.
func (m *MemoryStore) Get(name string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[name]
	if !ok {
		return nil, ErrNotFound
	}
	c := *e
	c.Blob = bytes.Clone(e.Blob)
	return &c, nil
}

// List returns entry metadata in name order.
func (m *MemoryStore) List() ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		c := *e
		c.Blob = nil
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes the named entry.
func (m *MemoryStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[name]; !ok {
		return ErrNotFound
	}
	delete(m.entries, name)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

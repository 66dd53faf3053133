package datastore

import (
	"context"
	"sync"
)

// Write records one Put on a MemoryBackend.
type Write struct {
	Path  Path
	Value string
}

// MemoryBackend is an in-memory backend. It doubles as the test fake:
// errors can be injected and every write is recorded.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[Path]string
	writes []Write

	// GetError and PutError, if set, are returned by every call.
	GetError error
	PutError error

	Closed bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[Path]string)}
}

// Get returns the stored value.
func (m *MemoryBackend) Get(_ context.Context, p Path) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetError != nil {
		return "", m.GetError
	}
	v, ok := m.values[p]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Put stores the value.
func (m *MemoryBackend) Put(_ context.Context, p Path, v string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutError != nil {
		return m.PutError
	}
	m.values[p] = v
	m.writes = append(m.writes, Write{Path: p, Value: v})
	return nil
}

// Set stores a value without recording it as a write, simulating a change
// made by the dashboard.
func (m *MemoryBackend) Set(p Path, v string) {
	m.mu.Lock()
	m.values[p] = v
	m.mu.Unlock()
}

// Value returns the stored value and whether it exists.
func (m *MemoryBackend) Value(p Path) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[p]
	return v, ok
}

// Writes returns a copy of the recorded writes.
func (m *MemoryBackend) Writes() []Write {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Write(nil), m.writes...)
}

// ResetWrites clears the recorded writes.
func (m *MemoryBackend) ResetWrites() {
	m.mu.Lock()
	m.writes = nil
	m.mu.Unlock()
}

// Close marks the backend closed.
func (m *MemoryBackend) Close() error {
	m.Closed = true
	return nil
}

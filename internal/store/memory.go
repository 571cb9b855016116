package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Memory is a map-backed Store used in tests and local development. Documents
// are kept as marshalled JSON so reads return copies, never aliases.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte

	// FailNextUpdate makes the next Update call return this error, for
	// exercising no-partial-write behaviour in tests.
	FailNextUpdate error
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

type jsonSnapshot struct {
	raw []byte
}

func (s jsonSnapshot) Exists() bool { return s.raw != nil }

func (s jsonSnapshot) Val(dest any) error {
	if s.raw == nil {
		return nil
	}
	return json.Unmarshal(s.raw, dest)
}

// Get reads the document at path.
func (m *Memory) Get(ctx context.Context, path string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.docs[path]
	if !ok {
		return jsonSnapshot{}, nil
	}
	return jsonSnapshot{raw: raw}, nil
}

// List reads every document under prefix.
func (m *Memory) List(ctx context.Context, prefix string) (map[string]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Snapshot)
	for path, raw := range m.docs {
		if strings.HasPrefix(path, prefix) {
			out[path] = jsonSnapshot{raw: raw}
		}
	}
	return out, nil
}

// Set writes a single document.
func (m *Memory) Set(ctx context.Context, path string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[path] = raw
	return nil
}

// Remove deletes a single document.
func (m *Memory) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, path)
	return nil
}

// Update applies all writes as one unit. Marshalling happens before any
// mutation so a bad value leaves the store untouched.
func (m *Memory) Update(ctx context.Context, writes map[string]any) error {
	if err := m.FailNextUpdate; err != nil {
		m.FailNextUpdate = nil
		return err
	}
	marshalled := make(map[string][]byte, len(writes))
	for path, value := range writes {
		if value == nil {
			marshalled[path] = nil
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		marshalled[path] = raw
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, raw := range marshalled {
		if raw == nil {
			delete(m.docs, path)
			continue
		}
		m.docs[path] = raw
	}
	return nil
}

// Push allocates a child identifier under path.
func (m *Memory) Push(ctx context.Context, path string) (string, error) {
	return uuid.NewString(), nil
}

// Len reports the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/ruteri/host-directory/interfaces"
)

// MemoryStore keeps entries in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	name string
	log  *slog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(name string, log *slog.Logger) *MemoryStore {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryStore{
		data: make(map[string][]byte),
		name: name,
		log:  log,
	}
}

// Fetch returns a copy of the value stored under key.
func (m *MemoryStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[key]
	if !ok {
		return nil, interfaces.ErrContentNotFound
	}
	return slices.Clone(data), nil
}

// Store saves a copy of data under key.
func (m *MemoryStore) Store(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = slices.Clone(data)
	m.log.Debug("Stored entry in memory", slog.String("key", key), slog.Int("size", len(data)))
	return nil
}

// Delete removes key.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// List returns the sorted keys below prefix.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Available always reports true.
func (m *MemoryStore) Available(ctx context.Context) bool {
	return true
}

// Name returns a unique identifier for this store.
func (m *MemoryStore) Name() string {
	return fmt.Sprintf("mem-%s", m.name)
}

// LocationURI returns the URI that identifies this store.
func (m *MemoryStore) LocationURI() string {
	return "mem://" + m.name
}

package uptime

import (
	"context"
	"errors"
	"sync"
)

// ErrKeyNotFound is returned by Store.Get for a key that was never set.
var ErrKeyNotFound = errors.New("key not found")

// Store is the key-value backend the engine persists into. Keys follow
// "{field}:{component}" and values are integers.
type Store interface {
	Get(ctx context.Context, key string) (int64, error)
	Set(ctx context.Context, key string, value int64) error
	Incr(ctx context.Context, key string) (int64, error)
	// SetNX sets key only if it is absent and reports whether it wrote.
	SetNX(ctx context.Context, key string, value int64) (bool, error)
	// MGet returns one value per key; missing keys read as 0.
	MGet(ctx context.Context, keys ...string) ([]int64, error)
	Close() error
}

const (
	fieldStatus  = "status"
	fieldLatency = "latency"
	fieldUptime  = "uptime"
	fieldRecord  = "uptimerecord"
)

func StatusKey(component string) string  { return fieldStatus + ":" + component }
func LatencyKey(component string) string { return fieldLatency + ":" + component }
func UptimeKey(component string) string  { return fieldUptime + ":" + component }
func RecordKey(component string) string  { return fieldRecord + ":" + component }

func componentKeys(component string) []string {
	return []string{StatusKey(component), LatencyKey(component), UptimeKey(component), RecordKey(component)}
}

// EnsureKeys creates the four keys of a component with value 0 when absent.
// Existing values are left untouched.
func EnsureKeys(ctx context.Context, s Store, component string) error {
	for _, key := range componentKeys(component) {
		if _, err := s.SetNX(ctx, key, 0); err != nil {
			return err
		}
	}
	return nil
}

// MemoryStore is an in-process Store. Useful for tests and for runs that do
// not need durability.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]int64)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return 0, ErrKeyNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value int64) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key]++
	return m.data[key], nil
}

func (m *MemoryStore) SetNX(_ context.Context, key string, value int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *MemoryStore) MGet(_ context.Context, keys ...string) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int64, len(keys))
	for i, k := range keys {
		out[i] = m.data[k]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

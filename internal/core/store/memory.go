package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process KV. It is the test double for every component
// and the "memory" store driver.
type Memory struct {
	mu       sync.Mutex
	data     map[string]string
	maxBytes int64
	used     int64
}

// NewMemory returns an empty store. maxBytes <= 0 means unbounded.
func NewMemory(maxBytes int64) *Memory {
	return &Memory{data: map[string]string{}, maxBytes: maxBytes}
}

// Get implements KV.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	return value, ok, nil
}

// Set implements KV. A write that would push the total past maxBytes is
// refused with ErrQuotaExceeded.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.used - int64(len(m.data[key])) + int64(len(value))
	if m.maxBytes > 0 && next > m.maxBytes {
		return fmt.Errorf("write %q: %w", key, ErrQuotaExceeded)
	}
	m.data[key] = value
	m.used = next
	return nil
}

// Remove implements KV.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value, ok := m.data[key]; ok {
		m.used -= int64(len(value))
		delete(m.data, key)
	}
	return nil
}

// Keys implements KV. Keys are sorted.
func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Driver implements Backend.
func (m *Memory) Driver() string { return driverMemory }

// Close implements Backend. It is a no-op.
func (m *Memory) Close() error { return nil }

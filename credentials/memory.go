package credentials

import (
	"context"
	"maps"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the session in process memory. It does not survive a
// restart; use it for tests and short-lived tools.
type MemoryStore struct {
	values map[Key]string
	lock   sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[Key]string),
	}
}

func (m *MemoryStore) Get(_ context.Context, key Key) (string, error) {
	if err := CheckKeys(key); err != nil {
		return "", err
	}
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.values[key], nil
}

func (m *MemoryStore) Set(_ context.Context, key Key, value string) error {
	if err := CheckKeys(key); err != nil {
		return err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	apply(m.values, key, value)
	return nil
}

func (m *MemoryStore) SetAll(_ context.Context, values map[Key]string) error {
	if err := CheckValues(values); err != nil {
		return err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	for k, v := range values {
		apply(m.values, k, v)
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key Key) error {
	if err := CheckKeys(key); err != nil {
		return err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	clear(m.values)
	return nil
}

// Snapshot returns a copy of every stored value.
func (m *MemoryStore) Snapshot() map[Key]string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return maps.Clone(m.values)
}

func apply(values map[Key]string, key Key, value string) {
	if value == "" {
		delete(values, key)
		return
	}
	values[key] = value
}

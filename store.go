package dsm

import (
	"maps"
	"sync"
)

// MapStore is the default machine store: a string keyed bag shared by all
// states of a machine.
type MapStore struct {
	data  map[string]any
	mutex sync.RWMutex
}

// NewMapStore creates an empty store
func NewMapStore() *MapStore {
	return &MapStore{
		data: make(map[string]any),
	}
}

// Get retrieves a value from the store
func (s *MapStore) Get(key string) (any, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	value, exists := s.data[key]
	return value, exists
}

// Set stores a value
func (s *MapStore) Set(key string, value any) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data[key] = value
}

// Delete removes a value
func (s *MapStore) Delete(key string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.data, key)
}

// GetAll returns a copy of all values
func (s *MapStore) GetAll() map[string]any {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return maps.Clone(s.data)
}

// GetAs returns the value under key converted to T
func GetAs[T any](s *MapStore, key string) (T, bool) {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

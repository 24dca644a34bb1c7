package storage

import (
	"context"
	"sync"
)

// MemoryStore is a process-local KeyValueStore.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string][]byte
}

var _ KeyValueStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Keys returns the number of stored keys.
func (s *MemoryStore) Keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

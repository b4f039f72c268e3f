// Package blockstore persists content-addressed blocks and lays a payload
// out as chunk blocks plus a single index block.
package blockstore

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("block not found")

type Store interface {
	Put(ctx context.Context, id string, data []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
	Has(ctx context.Context, id string) (bool, error)
	// Size is the amount of distinct blocks held
	Size(ctx context.Context) (int, error)
	Close() error
}

type memoryStore struct {
	mu     sync.RWMutex
	blocks map[string][]byte
}

func NewMemory() Store {
	return &memoryStore{blocks: make(map[string][]byte)}
}

func (s *memoryStore) Put(_ context.Context, id string, data []byte) error {
	s.mu.Lock()
	if _, exists := s.blocks[id]; !exists {
		s.blocks[id] = append([]byte(nil), data...)
	}
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	data, found := s.blocks[id]
	s.mu.RUnlock()
	if !found {
		return nil, notFound(id)
	}
	return data, nil
}

func (s *memoryStore) Has(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	_, found := s.blocks[id]
	s.mu.RUnlock()
	return found, nil
}

func (s *memoryStore) Size(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks), nil
}

func (s *memoryStore) Close() error { return nil }

type notFoundError string

func (e notFoundError) Error() string { return "block " + string(e) + " not found" }
func (e notFoundError) Unwrap() error { return ErrNotFound }
func notFound(id string) error        { return notFoundError(id) }

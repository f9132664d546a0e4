// Package snapshot persists the ledger's versioned state envelope across
// redeployments.
package snapshot

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound indicates no snapshot has been saved yet.
var ErrNotFound = errors.New("snapshot: not found")

// Store persists one opaque snapshot blob.
type Store interface {
	Save(ctx context.Context, data []byte) error
	Load(ctx context.Context) ([]byte, error)
}

type memoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemory returns a store that keeps the snapshot in process memory.
// Useful for tests and for running without external infrastructure.
func NewMemory() Store {
	return &memoryStore{}
}

func (s *memoryStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.data = cp
	return nil
}

func (s *memoryStore) Load(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(s.data))
	copy(cp, s.data)
	return cp, nil
}

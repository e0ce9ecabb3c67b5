package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps archived files in process memory. URIs use mem://.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	uri := "mem://uploads/" + objectName("", name, time.Now(), uuid.NewString())

	s.mu.Lock()
	s.objects[uri] = append([]byte(nil), data...)
	s.mu.Unlock()

	return uri, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, uri string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[uri]
	if !ok {
		return nil, fmt.Errorf("MemoryStore.Get: object not found: %s", uri)
	}
	return append([]byte(nil), data...), nil
}

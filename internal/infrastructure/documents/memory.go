package documents

import (
	"context"
	"fmt"
	"sync"
)

type memoryObject struct {
	contentType string
	body        []byte
}

// MemoryStore keeps documents in process. Used in development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (m *MemoryStore) Put(_ context.Context, name, contentType string, body []byte) (string, error) {
	key := objectPath(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; ok {
		return "", fmt.Errorf("%w: %s", ErrAlreadyExists, key)
	}
	m.objects[key] = memoryObject{contentType: contentType, body: append([]byte(nil), body...)}
	return "memory://" + key, nil
}

// Get returns a copy of the stored body and its content type.
func (m *MemoryStore) Get(name string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[objectPath(name)]
	if !ok {
		return nil, "", ErrNotFound
	}
	return append([]byte(nil), obj.body...), obj.contentType, nil
}

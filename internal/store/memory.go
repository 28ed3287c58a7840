package store

import (
	"context"
	"sync"

	"github.com/markdave123-py/intellbee/internal/core"
)

// MemoryDocuments is an in-process DocumentStore used by tests.
type MemoryDocuments struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{docs: make(map[string][]byte)}
}

func (m *MemoryDocuments) ReadDocument(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.docs[name]
	if !ok {
		return nil, core.ErrDocumentNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryDocuments) WriteDocument(_ context.Context, name string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = append([]byte(nil), body...)
	return nil
}

func (m *MemoryDocuments) Close() error { return nil }

var _ core.DocumentStore = (*MemoryDocuments)(nil)

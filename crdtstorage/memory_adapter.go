package crdtstorage

import (
	"context"
	"sync"

	"treecrdt/common"
)

// MemoryAdapter is the in-memory PersistenceAdapter, for tests and ephemeral
// hosts.
type MemoryAdapter struct {
	// documents maps a document ID to its serialized form.
	documents map[string][]byte

	// mutex protects the documents map.
	mutex sync.RWMutex
}

// NewMemoryAdapter creates an empty MemoryAdapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		documents: make(map[string][]byte),
	}
}

// SaveDocument stores the serialized document.
func (a *MemoryAdapter) SaveDocument(ctx context.Context, documentID string, data []byte) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	a.documents[documentID] = dataCopy
	return nil
}

// LoadDocument returns the serialized document.
func (a *MemoryAdapter) LoadDocument(ctx context.Context, documentID string) ([]byte, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	data, ok := a.documents[documentID]
	if !ok {
		return nil, common.ErrNotFound{Message: "document " + documentID}
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	return dataCopy, nil
}

// ListDocuments returns the stored document IDs.
func (a *MemoryAdapter) ListDocuments(ctx context.Context) ([]string, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	ids := make([]string, 0, len(a.documents))
	for id := range a.documents {
		ids = append(ids, id)
	}
	return ids, nil
}

// DeleteDocument removes the stored document.
func (a *MemoryAdapter) DeleteDocument(ctx context.Context, documentID string) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if _, ok := a.documents[documentID]; !ok {
		return common.ErrNotFound{Message: "document " + documentID}
	}
	delete(a.documents, documentID)
	return nil
}

// Close releases the adapter's resources.
func (a *MemoryAdapter) Close() error {
	return nil
}

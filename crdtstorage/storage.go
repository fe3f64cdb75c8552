package crdtstorage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Storage is a façade over one PersistenceAdapter that keeps open documents
// cached in memory.
type Storage struct {
	// adapter is the backing persistence adapter.
	adapter PersistenceAdapter

	// documents caches open documents by ID.
	documents map[string]*Document

	// mutex protects the cache.
	mutex sync.Mutex
}

// NewStorage creates a Storage over the given adapter.
func NewStorage(adapter PersistenceAdapter) (*Storage, error) {
	if adapter == nil {
		return nil, fmt.Errorf("persistence adapter cannot be nil")
	}

	return &Storage{
		adapter:   adapter,
		documents: make(map[string]*Document),
	}, nil
}

// CreateDocument creates and persists a fresh document.
func (s *Storage) CreateDocument(ctx context.Context, documentID string) (*Document, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.documents[documentID]; ok {
		return nil, fmt.Errorf("document %q is already open", documentID)
	}

	doc, err := NewDocument(documentID)
	if err != nil {
		return nil, err
	}

	if err := s.saveLocked(ctx, doc); err != nil {
		return nil, err
	}
	s.documents[documentID] = doc

	log.Infow("created document", "id", documentID, "session", doc.Clock.SessionID())
	return doc, nil
}

// GetDocument returns the open document, loading it from the adapter when it
// is not cached.
func (s *Storage) GetDocument(ctx context.Context, documentID string) (*Document, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if doc, ok := s.documents[documentID]; ok {
		return doc, nil
	}

	data, err := s.adapter.LoadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	doc, err := DeserializeDocument(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open document %q", documentID)
	}

	s.documents[documentID] = doc
	return doc, nil
}

// SaveDocument persists the document's current state.
func (s *Storage) SaveDocument(ctx context.Context, doc *Document) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.saveLocked(ctx, doc)
}

func (s *Storage) saveLocked(ctx context.Context, doc *Document) error {
	doc.LastModified = time.Now().UTC()

	data, err := doc.Serialize()
	if err != nil {
		return errors.Wrapf(err, "failed to serialize document %q", doc.ID)
	}
	return s.adapter.SaveDocument(ctx, doc.ID, data)
}

// ListDocuments returns the IDs of all persisted documents.
func (s *Storage) ListDocuments(ctx context.Context) ([]string, error) {
	return s.adapter.ListDocuments(ctx)
}

// DeleteDocument removes a document from the adapter and the cache.
func (s *Storage) DeleteDocument(ctx context.Context, documentID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.documents, documentID)
	return s.adapter.DeleteDocument(ctx, documentID)
}

// Close closes the adapter. Cached documents are dropped without saving.
func (s *Storage) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.documents = make(map[string]*Document)
	return s.adapter.Close()
}

package crdtstorage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"treecrdt/common"
)

// FileAdapter stores each document as one JSON file under a base directory.
type FileAdapter struct {
	// basePath is the directory the document files live in.
	basePath string

	// mutex serializes file operations.
	mutex sync.RWMutex
}

// NewFileAdapter creates a FileAdapter rooted at basePath, creating the
// directory if needed.
func NewFileAdapter(basePath string) (*FileAdapter, error) {
	if basePath == "" {
		basePath = "documents"
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create document directory")
	}

	return &FileAdapter{basePath: basePath}, nil
}

func (a *FileAdapter) filePath(documentID string) string {
	return filepath.Join(a.basePath, fmt.Sprintf("%s.json", documentID))
}

// SaveDocument stores the serialized document.
func (a *FileAdapter) SaveDocument(ctx context.Context, documentID string, data []byte) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	path := a.filePath(documentID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write document file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "failed to replace document file")
	}
	return nil
}

// LoadDocument returns the serialized document.
func (a *FileAdapter) LoadDocument(ctx context.Context, documentID string) ([]byte, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	data, err := os.ReadFile(a.filePath(documentID))
	if os.IsNotExist(err) {
		return nil, common.ErrNotFound{Message: "document " + documentID}
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read document file")
	}
	return data, nil
}

// ListDocuments returns the stored document IDs.
func (a *FileAdapter) ListDocuments(ctx context.Context) ([]string, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	entries, err := os.ReadDir(a.basePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read document directory")
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// DeleteDocument removes the stored document.
func (a *FileAdapter) DeleteDocument(ctx context.Context, documentID string) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	err := os.Remove(a.filePath(documentID))
	if os.IsNotExist(err) {
		return common.ErrNotFound{Message: "document " + documentID}
	}
	return errors.Wrap(err, "failed to delete document file")
}

// Close releases the adapter's resources.
func (a *FileAdapter) Close() error {
	return nil
}

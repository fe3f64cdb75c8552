package crdtstorage

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("crdtstorage")

// PersistenceAdapter stores serialized documents under a document ID. The
// payload is opaque to the adapter; Document owns the layout.
type PersistenceAdapter interface {
	// SaveDocument stores the serialized document.
	SaveDocument(ctx context.Context, documentID string, data []byte) error

	// LoadDocument returns the serialized document.
	LoadDocument(ctx context.Context, documentID string) ([]byte, error)

	// ListDocuments returns the stored document IDs.
	ListDocuments(ctx context.Context) ([]string, error)

	// DeleteDocument removes the stored document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Close releases the adapter's resources.
	Close() error
}

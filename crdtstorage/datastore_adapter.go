package crdtstorage

import (
	"context"

	ds "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	"github.com/pkg/errors"

	"treecrdt/common"
)

// DatastoreAdapter stores documents in any go-datastore implementation, so a
// host already running an IPFS-style datastore can keep its replicas there.
type DatastoreAdapter struct {
	// store is the backing datastore.
	store ds.Datastore

	// prefix namespaces the document keys.
	prefix ds.Key
}

// NewDatastoreAdapter creates a DatastoreAdapter over the given datastore.
func NewDatastoreAdapter(store ds.Datastore, prefix string) (*DatastoreAdapter, error) {
	if store == nil {
		return nil, errors.New("datastore cannot be nil")
	}
	if prefix == "" {
		prefix = "/treecrdt"
	}

	return &DatastoreAdapter{store: store, prefix: ds.NewKey(prefix)}, nil
}

func (a *DatastoreAdapter) documentKey(documentID string) ds.Key {
	return a.prefix.ChildString(documentID)
}

// SaveDocument stores the serialized document.
func (a *DatastoreAdapter) SaveDocument(ctx context.Context, documentID string, data []byte) error {
	if err := a.store.Put(ctx, a.documentKey(documentID), data); err != nil {
		return errors.Wrap(err, "failed to save document")
	}
	return nil
}

// LoadDocument returns the serialized document.
func (a *DatastoreAdapter) LoadDocument(ctx context.Context, documentID string) ([]byte, error) {
	data, err := a.store.Get(ctx, a.documentKey(documentID))
	if err == ds.ErrNotFound {
		return nil, common.ErrNotFound{Message: "document " + documentID}
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load document")
	}
	return data, nil
}

// ListDocuments returns the stored document IDs.
func (a *DatastoreAdapter) ListDocuments(ctx context.Context) ([]string, error) {
	results, err := a.store.Query(ctx, query.Query{
		Prefix:   a.prefix.String(),
		KeysOnly: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to query documents")
	}
	defer results.Close()

	var ids []string
	for result := range results.Next() {
		if result.Error != nil {
			return nil, errors.Wrap(result.Error, "failed to iterate documents")
		}
		ids = append(ids, ds.NewKey(result.Key).BaseNamespace())
	}
	return ids, nil
}

// DeleteDocument removes the stored document.
func (a *DatastoreAdapter) DeleteDocument(ctx context.Context, documentID string) error {
	key := a.documentKey(documentID)

	has, err := a.store.Has(ctx, key)
	if err != nil {
		return errors.Wrap(err, "failed to check document")
	}
	if !has {
		return common.ErrNotFound{Message: "document " + documentID}
	}

	if err := a.store.Delete(ctx, key); err != nil {
		return errors.Wrap(err, "failed to delete document")
	}
	return nil
}

// Close releases the adapter's resources.
func (a *DatastoreAdapter) Close() error {
	return a.store.Close()
}

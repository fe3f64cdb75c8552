package crdtstorage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"treecrdt/common"
)

// RedisAdapter stores documents as Redis string values under a key prefix.
type RedisAdapter struct {
	// client is the Redis client.
	client *redis.Client

	// keyPrefix namespaces the document keys.
	keyPrefix string
}

// NewRedisAdapter creates a RedisAdapter over the given client.
func NewRedisAdapter(client *redis.Client, keyPrefix string) (*RedisAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if keyPrefix == "" {
		keyPrefix = "treecrdt"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return &RedisAdapter{client: client, keyPrefix: keyPrefix}, nil
}

func (a *RedisAdapter) documentKey(documentID string) string {
	return fmt.Sprintf("%s:doc:%s", a.keyPrefix, documentID)
}

// SaveDocument stores the serialized document.
func (a *RedisAdapter) SaveDocument(ctx context.Context, documentID string, data []byte) error {
	if err := a.client.Set(ctx, a.documentKey(documentID), data, 0).Err(); err != nil {
		return errors.Wrap(err, "failed to save document")
	}
	return nil
}

// LoadDocument returns the serialized document.
func (a *RedisAdapter) LoadDocument(ctx context.Context, documentID string) ([]byte, error) {
	data, err := a.client.Get(ctx, a.documentKey(documentID)).Bytes()
	if err == redis.Nil {
		return nil, common.ErrNotFound{Message: "document " + documentID}
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load document")
	}
	return data, nil
}

// ListDocuments returns the stored document IDs.
func (a *RedisAdapter) ListDocuments(ctx context.Context) ([]string, error) {
	prefix := a.documentKey("")
	pattern := a.documentKey("*")

	var ids []string
	iter := a.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan documents")
	}
	return ids, nil
}

// DeleteDocument removes the stored document.
func (a *RedisAdapter) DeleteDocument(ctx context.Context, documentID string) error {
	deleted, err := a.client.Del(ctx, a.documentKey(documentID)).Result()
	if err != nil {
		return errors.Wrap(err, "failed to delete document")
	}
	if deleted == 0 {
		return common.ErrNotFound{Message: "document " + documentID}
	}
	return nil
}

// Close releases the adapter's resources.
func (a *RedisAdapter) Close() error {
	return a.client.Close()
}

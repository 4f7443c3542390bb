package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Storage is the durable key/value mirror a cart writes its snapshot to.
// Consumers define this interface, not the backends.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

package ports

import "context"

// KeyValueStore is the durable string-keyed store that survives process restarts.
type KeyValueStore interface {
	// Get returns the stored value, or nil with a nil error when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes a key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Clear deletes every key owned by the store.
	Clear(ctx context.Context) error
	Keys(ctx context.Context) ([]string, error)
}

package redis

// Package redis provides Redis-based adapters for the session client.

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/nexoai/pos-client/internal/errors"
	"github.com/nexoai/pos-client/internal/ports"
)

var _ ports.KeyValueStore = (*KVStore)(nil)

// DefaultKeyPrefix namespaces the store's keys inside a shared Redis database.
const DefaultKeyPrefix = "nexopos:kv:"

const scanBatch = 100

// KVStore is a Redis-backed KeyValueStore. Keys never expire; the session
// lifetime is decided by the backend, not by storage.
type KVStore struct {
	client redis.UniversalClient
	prefix string
}

// NewKVStore creates a Redis KeyValueStore using DefaultKeyPrefix.
func NewKVStore(client redis.UniversalClient) *KVStore {
	return NewKVStoreWithPrefix(client, DefaultKeyPrefix)
}

// NewKVStoreWithPrefix creates a Redis KeyValueStore with a custom key prefix.
func NewKVStoreWithPrefix(client redis.UniversalClient, prefix string) *KVStore {
	return &KVStore{
		client: client,
		prefix: prefix,
	}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, apperrors.Storage(err, "get", key)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return apperrors.ValidationField("key", "key cannot be empty")
	}
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return apperrors.Storage(err, "set", key)
	}
	return nil
}

func (s *KVStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return apperrors.Storage(err, "remove", key)
	}
	return nil
}

// Clear deletes every key under the prefix. Keys outside the prefix are untouched.
func (s *KVStore) Clear(ctx context.Context) error {
	keys, err := s.scan(ctx)
	if err != nil {
		return apperrors.Storage(err, "clear", s.prefix)
	}
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		if err := s.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return apperrors.Storage(err, "clear", s.prefix)
		}
	}
	return nil
}

func (s *KVStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.scan(ctx)
	if err != nil {
		return nil, apperrors.Storage(err, "keys", s.prefix)
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, s.prefix))
	}
	sort.Strings(out)
	return out, nil
}

// scan returns the full Redis keys under the prefix.
func (s *KVStore) scan(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

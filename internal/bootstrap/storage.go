package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nexoai/pos-client/config"
	"github.com/nexoai/pos-client/internal/adapters/kvstore"
	redisstore "github.com/nexoai/pos-client/internal/adapters/redis"
	"github.com/nexoai/pos-client/internal/ports"
)

// StoreDeps groups dependencies for BuildStore.
type StoreDeps struct {
	Storage config.StorageConfig
	Redis   config.RedisConfig
	Logger  *slog.Logger
}

// Store is a built key-value store plus the cleanup it needs.
type Store struct {
	ports.KeyValueStore
	close func() error
}

// Close releases connections held by the store.
func (s *Store) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// BuildStore creates the session key-value store selected by STORAGE_BACKEND.
func BuildStore(ctx context.Context, deps StoreDeps) (*Store, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch deps.Storage.Backend {
	case config.StorageBackendMemory:
		logger.Warn("using in-memory session store; sessions will not survive a restart")
		return &Store{KeyValueStore: kvstore.NewMemoryStore()}, nil

	case config.StorageBackendRedis:
		client, err := ConnectRedis(ctx, deps.Redis, logger)
		if err != nil {
			return nil, err
		}
		return &Store{
			KeyValueStore: redisstore.NewKVStoreWithPrefix(client, deps.Redis.KeyPrefix),
			close:         client.Close,
		}, nil

	default:
		sealer, err := buildSealer(deps.Storage.EncryptionKey)
		if err != nil {
			return nil, err
		}
		fs, err := kvstore.NewFileStore(kvstore.FileStoreOptions{Path: deps.Storage.FilePath, Sealer: sealer})
		if err != nil {
			return nil, fmt.Errorf("open session file: %w", err)
		}
		logger.Debug("session file store ready", "path", fs.Path(), "encrypted", deps.Storage.EncryptionKey != "")
		return &Store{KeyValueStore: fs}, nil
	}
}

//nolint:ireturn // the sealer is picked at runtime from the encryption key.
func buildSealer(key string) (kvstore.Sealer, error) {
	if strings.TrimSpace(key) == "" {
		return kvstore.PlainSealer{}, nil
	}
	sealer, err := kvstore.NewAESGCMSealer(key)
	if err != nil {
		return nil, fmt.Errorf("init storage encryption: %w", err)
	}
	return sealer, nil
}

// ConnectRedis connects to Redis (direct or sentinel) and verifies the connection.
//
//nolint:ireturn // returning redis.UniversalClient lets us pick single or sentinel clients at runtime.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	var (
		client   redis.UniversalClient
		addrDesc string
		err      error
	)

	if cfg.UseSentinel {
		client, addrDesc, err = newSentinelClient(cfg)
	} else {
		client, addrDesc, err = newDirectClient(cfg)
	}
	if err != nil {
		return nil, err
	}

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if pingErr := client.Ping(pingCtx).Err(); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis: %w", pingErr)
	}

	if logger != nil {
		logger.Info("redis connected", "addr", redactAddr(addrDesc))
	}

	return client, nil
}

//nolint:ireturn // returning redis.UniversalClient keeps client selection flexible.
func newSentinelClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	if len(cfg.SentinelNodes) == 0 {
		return nil, "", errors.New("redis sentinel configuration requires at least one sentinel node")
	}

	opts := &redis.FailoverOptions{
		MasterName:       cfg.SentinelMasterName,
		SentinelAddrs:    cfg.SentinelNodes,
		Password:         cfg.Password,
		SentinelPassword: cfg.SentinelPassword,
		DB:               cfg.DB,
	}
	return redis.NewFailoverClient(opts), "sentinel:" + cfg.SentinelMasterName, nil
}

//nolint:ireturn // returning redis.UniversalClient keeps client selection flexible.
func newDirectClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, "", errors.New("redis direct configuration requires a URI")
	}

	if isRedisURL(uri) {
		opt, err := redis.ParseURL(uri)
		if err != nil {
			return nil, "", fmt.Errorf("parse redis url: %w", err)
		}
		if opt.Password == "" {
			opt.Password = cfg.Password
		}
		return redis.NewClient(opt), uri, nil
	}

	opts := &redis.Options{
		Addr:     uri,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	return redis.NewClient(opts), uri, nil
}

// redactAddr strips credentials from a redis address for logging.
func redactAddr(addr string) string {
	if u, err := url.Parse(addr); err == nil && u.User != nil {
		u.User = url.User("*")
		return u.Redacted()
	}
	if i := strings.LastIndex(addr, "@"); i > -1 {
		return addr[i+1:]
	}
	return addr
}

func isRedisURL(value string) bool {
	return strings.HasPrefix(value, "redis://") || strings.HasPrefix(value, "rediss://")
}

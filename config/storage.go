package config

import (
	"os"
	"path/filepath"
	"strings"
)

// StorageBackend selects where the session vault persists its keys.
type StorageBackend string

const (
	StorageBackendFile   StorageBackend = "file"
	StorageBackendMemory StorageBackend = "memory"
	StorageBackendRedis  StorageBackend = "redis"
)

// StorageConfig controls session persistence.
type StorageConfig struct {
	Backend StorageBackend `env:"BACKEND" envDefault:"file"`

	// FilePath is the JSON document used by the file backend.
	// Defaults to <user config dir>/nexopos/session.json.
	FilePath string `env:"FILE_PATH"`

	// EncryptionKey enables AES-GCM sealing of stored values when set.
	EncryptionKey string `env:"ENCRYPTION_KEY"`
}

// Sanitize normalises the backend name and resolves the default file path.
func (c *StorageConfig) Sanitize() {
	c.Backend = StorageBackend(strings.ToLower(strings.TrimSpace(string(c.Backend))))
	switch c.Backend {
	case StorageBackendFile, StorageBackendMemory, StorageBackendRedis:
	default:
		c.Backend = StorageBackendFile
	}

	c.FilePath = strings.TrimSpace(c.FilePath)
	if c.FilePath == "" {
		c.FilePath = defaultSessionFile()
	}
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "nexopos", "session.json")
}

// RedisConfig contains Redis connection settings for the redis backend.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	KeyPrefix          string   `env:"KEY_PREFIX"           envDefault:"nexopos:session:"`
	SentinelNodes      []string `env:"SENTINEL_NODES"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
}

// Sanitize trims addresses and clamps the database index.
func (c *RedisConfig) Sanitize() {
	c.URI = strings.TrimSpace(c.URI)
	if c.DB < 0 {
		c.DB = 0
	}
	nodes := c.SentinelNodes[:0]
	for _, n := range c.SentinelNodes {
		if n = strings.TrimSpace(n); n != "" {
			nodes = append(nodes, n)
		}
	}
	c.SentinelNodes = nodes
	if len(c.SentinelNodes) == 0 {
		c.UseSentinel = false
	}
}

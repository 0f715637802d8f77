// Package kvstore provides KeyValueStore implementations that live on the local device.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	apperrors "github.com/nexoai/pos-client/internal/errors"
	"github.com/nexoai/pos-client/internal/ports"
)

var _ ports.KeyValueStore = (*FileStore)(nil)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

// FileStore persists every key in one JSON document. Writes replace the file
// atomically, so a crash leaves either the previous or the new document.
type FileStore struct {
	path   string
	sealer Sealer

	mu sync.Mutex
}

// FileStoreOptions configures NewFileStore.
type FileStoreOptions struct {
	Path string
	// Sealer encrypts values at rest. Defaults to PlainSealer.
	Sealer Sealer
}

// NewFileStore creates a FileStore at opts.Path, creating its directory if needed.
func NewFileStore(opts FileStoreOptions) (*FileStore, error) {
	if opts.Path == "" {
		return nil, errors.New("file store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), dirMode); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	sealer := opts.Sealer
	if sealer == nil {
		sealer = PlainSealer{}
	}
	return &FileStore{path: opts.Path, sealer: sealer}, nil
}

// Path returns the backing file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, apperrors.Storage(err, "get", key)
	}
	sealed, ok := doc[key]
	if !ok {
		return nil, nil
	}
	value, err := s.sealer.Open(key, sealed)
	if err != nil {
		return nil, apperrors.Storage(err, "get", key)
	}
	return value, nil
}

func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return apperrors.ValidationField("key", "key cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return apperrors.Storage(err, "set", key)
	}
	sealed, err := s.sealer.Seal(key, value)
	if err != nil {
		return apperrors.Storage(err, "set", key)
	}
	doc[key] = sealed
	if err := s.save(doc); err != nil {
		return apperrors.Storage(err, "set", key)
	}
	return nil
}

func (s *FileStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return apperrors.Storage(err, "remove", key)
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	if err := s.save(doc); err != nil {
		return apperrors.Storage(err, "remove", key)
	}
	return nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.Storage(err, "clear", s.path)
	}
	return nil
}

func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, apperrors.Storage(err, "keys", s.path)
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// load reads the document; a missing file is an empty store.
func (s *FileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return map[string]string{}, nil
	}

	doc := map[string]string{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileStore) save(doc map[string]string) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".kvstore-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, fileMode); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/content-registry/pkg/registry"
)

// DefaultExtension is appended to every record file name
const DefaultExtension = ".json"

// Backend is a filesystem implementation of the registry.Storage interface.
// Each item is stored as one JSON record file in BaseDir. All operations on a
// backend share one lock, so calls on different keys still wait on each other.
type Backend struct {
	mu        sync.Mutex
	baseDir   string
	extension string
	logger    *slog.Logger
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string       // Directory holding the record files
	Extension string       // Record file extension (default: ".json")
	Logger    *slog.Logger // Receives swallowed I/O and decode failures (default: slog.Default())
}

// New creates a new filesystem storage backend. The directory is created by Initialize.
func New(config Config) (*Backend, error) {
	if strings.TrimSpace(config.BaseDir) == "" {
		return nil, fmt.Errorf("%w: base directory is required", registry.ErrInvalidArgument)
	}

	ext := config.Extension
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		baseDir:   config.BaseDir,
		extension: ext,
		logger:    logger,
	}, nil
}

// BaseDir returns the directory holding the record files
func (b *Backend) BaseDir() string {
	return b.baseDir
}

// Initialize creates the base directory if it doesn't exist
func (b *Backend) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(b.baseDir, 0755); err != nil {
		return &registry.StorageError{Backend: "fs", Op: "initialize", Err: fmt.Errorf("failed to create base directory: %w", err)}
	}
	return nil
}

// TryAdd writes item to a new record file. It returns false if the file
// already exists or cannot be written.
func (b *Backend) TryAdd(ctx context.Context, key string, item *registry.Item) (bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return false, err
	}
	if err := registry.CheckItem(item); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	filePath := b.filePath(key)
	if _, err := os.Stat(filePath); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		b.logger.WarnContext(ctx, "Failed to stat record file", "key", key, "path", filePath, "err", err)
		return false, nil
	}

	data, err := registry.EncodeRecord(item)
	if err != nil {
		b.logger.WarnContext(ctx, "Failed to encode record", "key", key, "err", err)
		return false, nil
	}

	// Write to a temp file first so a crash never leaves a truncated record.
	// Link fails if filePath exists, which also covers other processes
	// sharing the directory.
	tmpPath := filepath.Join(b.baseDir, "."+uuid.NewString()+".tmp")
	defer os.Remove(tmpPath)
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		b.logger.WarnContext(ctx, "Failed to write record file", "key", key, "path", tmpPath, "err", err)
		return false, nil
	}
	if err := os.Link(tmpPath, filePath); err != nil {
		if !errors.Is(err, os.ErrExist) {
			b.logger.WarnContext(ctx, "Failed to move record file into place", "key", key, "path", filePath, "err", err)
		}
		return false, nil
	}

	return true, nil
}

// TryGet reads and decodes the record file for key. Missing, unreadable and
// corrupt files are all reported as not found.
func (b *Backend) TryGet(ctx context.Context, key string) (*registry.Item, bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return nil, false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	filePath := b.filePath(key)
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		b.logger.WarnContext(ctx, "Failed to read record file", "key", key, "path", filePath, "err", err)
		return nil, false, nil
	}

	item, err := registry.DecodeRecord(data)
	if errors.Is(err, registry.ErrUnsupported) {
		return nil, false, &registry.StorageError{Backend: "fs", Key: key, Op: "get", Err: err}
	} else if err != nil {
		b.logger.WarnContext(ctx, "Failed to decode record file", "key", key, "path", filePath, "err", err)
		return nil, false, nil
	}

	return item, true, nil
}

// TryRemove deletes the record file for key
func (b *Backend) TryRemove(ctx context.Context, key string) (bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	filePath := b.filePath(key)
	if err := os.Remove(filePath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			b.logger.WarnContext(ctx, "Failed to delete record file", "key", key, "path", filePath, "err", err)
		}
		return false, nil
	}

	return true, nil
}

// ContainsKey reports whether a record file exists for key
func (b *Backend) ContainsKey(ctx context.Context, key string) (bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := os.Stat(b.filePath(key))
	return err == nil, nil
}

// FilePath returns the record file path used for key
func (b *Backend) FilePath(key string) string {
	return b.filePath(key)
}

func (b *Backend) filePath(key string) string {
	name := registry.SanitizeFileName(registry.NormalizeKey(key))
	return filepath.Join(b.baseDir, name+b.extension)
}

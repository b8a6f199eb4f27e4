// Package sqlite provides a SQLite-backed registry storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/tendant/content-registry/pkg/registry"
	"github.com/tendant/content-registry/pkg/registry/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// Config options for the SQLite backend
type Config struct {
	Logger *slog.Logger // Receives swallowed query failures (default: slog.Default())
}

// Backend persists registry items in a single SQLite table.
type Backend struct {
	sqlDB  *sql.DB
	logger *slog.Logger
}

// Open opens the database at path. Schema migrations run in Initialize.
func Open(path string, config Config) (*Backend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: storage path is required", registry.ErrInvalidArgument)
	}

	dsn := MemoryPath
	if path != MemoryPath {
		dsn = "file:" + filepath.Clean(path)
	}
	dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases shared.
	sqlDB.SetMaxOpenConns(1)

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{sqlDB: sqlDB, logger: logger}, nil
}

// Close closes the SQLite handle.
func (b *Backend) Close() error {
	if b == nil || b.sqlDB == nil {
		return nil
	}
	return b.sqlDB.Close()
}

// Initialize verifies the database is reachable and applies embedded migrations.
func (b *Backend) Initialize(ctx context.Context) error {
	if err := b.sqlDB.PingContext(ctx); err != nil {
		return &registry.StorageError{Backend: "sqlite", Op: "initialize", Err: fmt.Errorf("ping sqlite db: %w", err)}
	}
	if err := applyMigrations(ctx, b.sqlDB, migrations.FS); err != nil {
		return &registry.StorageError{Backend: "sqlite", Op: "initialize", Err: fmt.Errorf("run migrations: %w", err)}
	}
	return nil
}

// TryAdd inserts item unless a row already exists for key
func (b *Backend) TryAdd(ctx context.Context, key string, item *registry.Item) (bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return false, err
	}
	if err := registry.CheckItem(item); err != nil {
		return false, err
	}

	res, err := b.sqlDB.ExecContext(ctx,
		`INSERT INTO registry_items (key, name, content, type, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO NOTHING`,
		registry.NormalizeKey(key),
		item.Name,
		item.Content.Raw(),
		int(item.Content.Kind()),
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		b.logger.WarnContext(ctx, "Failed to insert item", "key", key, "err", err)
		return false, nil
	}

	n, err := res.RowsAffected()
	if err != nil {
		b.logger.WarnContext(ctx, "Failed to read rows affected", "key", key, "err", err)
		return false, nil
	}
	return n == 1, nil
}

// TryGet loads the row for key
func (b *Backend) TryGet(ctx context.Context, key string) (*registry.Item, bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return nil, false, err
	}

	var rec registry.Record
	var kind int
	err := b.sqlDB.QueryRowContext(ctx,
		`SELECT name, content, type FROM registry_items WHERE key = ?`,
		registry.NormalizeKey(key),
	).Scan(&rec.Name, &rec.Content, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	} else if err != nil {
		b.logger.WarnContext(ctx, "Failed to get item", "key", key, "err", err)
		return nil, false, nil
	}
	rec.Type = registry.Kind(kind)

	item, err := rec.Item()
	if errors.Is(err, registry.ErrUnsupported) {
		return nil, false, &registry.StorageError{Backend: "sqlite", Key: key, Op: "get", Err: err}
	} else if err != nil {
		b.logger.WarnContext(ctx, "Failed to decode item", "key", key, "err", err)
		return nil, false, nil
	}

	return item, true, nil
}

// TryRemove deletes the row for key
func (b *Backend) TryRemove(ctx context.Context, key string) (bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return false, err
	}

	res, err := b.sqlDB.ExecContext(ctx,
		`DELETE FROM registry_items WHERE key = ?`,
		registry.NormalizeKey(key),
	)
	if err != nil {
		b.logger.WarnContext(ctx, "Failed to delete item", "key", key, "err", err)
		return false, nil
	}

	n, err := res.RowsAffected()
	if err != nil {
		b.logger.WarnContext(ctx, "Failed to read rows affected", "key", key, "err", err)
		return false, nil
	}
	return n > 0, nil
}

// ContainsKey reports whether a row exists for key
func (b *Backend) ContainsKey(ctx context.Context, key string) (bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return false, err
	}

	var exists bool
	err := b.sqlDB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM registry_items WHERE key = ?)`,
		registry.NormalizeKey(key),
	).Scan(&exists)
	if err != nil {
		b.logger.WarnContext(ctx, "Failed to check item", "key", key, "err", err)
		return false, nil
	}
	return exists, nil
}

var _ registry.Storage = (*Backend)(nil)

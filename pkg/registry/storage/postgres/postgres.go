package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/content-registry/pkg/registry"
)

// DefaultTable is the table used when Config.Table is empty
const DefaultTable = "registry_items"

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Config options for the Postgres backend
type Config struct {
	Table    string       // Table name, optionally schema-qualified (default: registry_items)
	Schema   string       // search_path set on each pooled connection opened by Open
	MaxConns int32        // Pool size limit for Open (default: pgxpool's)
	Logger   *slog.Logger // Receives swallowed query failures (default: slog.Default())
}

// Backend implements registry.Storage using PostgreSQL. Each item is one row
// keyed by the case-folded name; uniqueness is enforced by the primary key.
type Backend struct {
	db     DBTX
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

// New creates a new PostgreSQL backend
func New(db DBTX, config Config) (*Backend, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database handle is required", registry.ErrInvalidArgument)
	}

	table := config.Table
	if table == "" {
		table = DefaultTable
	}
	parts := strings.Split(table, ".")
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			return nil, fmt.Errorf("%w: invalid table name %q", registry.ErrInvalidArgument, config.Table)
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		db:     db,
		table:  pgx.Identifier(parts).Sanitize(),
		logger: logger,
	}, nil
}

// NewWithPool creates a new PostgreSQL backend with connection pool
func NewWithPool(pool *pgxpool.Pool, config Config) (*Backend, error) {
	if pool == nil {
		return nil, fmt.Errorf("%w: pool is required", registry.ErrInvalidArgument)
	}
	return New(pool, config)
}

// Open connects to databaseURL and returns a backend that owns the pool.
// Close releases the pool.
func Open(ctx context.Context, databaseURL string, config Config) (*Backend, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("%w: database URL is required", registry.ErrInvalidArgument)
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if config.MaxConns > 0 {
		cfg.MaxConns = config.MaxConns
	}
	if schema := config.Schema; schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	b, err := New(pool, config)
	if err != nil {
		pool.Close()
		return nil, err
	}
	b.pool = pool
	return b, nil
}

// Close releases the connection pool if the backend opened it
func (b *Backend) Close() error {
	if b.pool != nil {
		b.pool.Close()
	}
	return nil
}

// Initialize creates the items table if it doesn't exist
func (b *Backend) Initialize(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key        TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			content    TEXT NOT NULL,
			type       SMALLINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, b.table)

	if _, err := b.db.Exec(ctx, query); err != nil {
		return &registry.StorageError{Backend: "postgres", Op: "initialize", Err: handlePostgresError(err)}
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

	query := fmt.Sprintf(`
		INSERT INTO %s (key, name, content, type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO NOTHING`, b.table)

	tag, err := b.db.Exec(ctx, query,
		registry.NormalizeKey(key), item.Name, item.Content.Raw(), int(item.Content.Kind()))
	if err != nil {
		b.logger.WarnContext(ctx, "Failed to insert item", "key", key, "err", handlePostgresError(err))
		return false, nil
	}

	return tag.RowsAffected() == 1, nil
}

// TryGet loads the row for key
func (b *Backend) TryGet(ctx context.Context, key string) (*registry.Item, bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return nil, false, err
	}

	query := fmt.Sprintf(`SELECT name, content, type FROM %s WHERE key = $1`, b.table)

	var rec registry.Record
	var kind int
	err := b.db.QueryRow(ctx, query, registry.NormalizeKey(key)).Scan(&rec.Name, &rec.Content, &kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	} else if err != nil {
		b.logger.WarnContext(ctx, "Failed to get item", "key", key, "err", handlePostgresError(err))
		return nil, false, nil
	}
	rec.Type = registry.Kind(kind)

	item, err := rec.Item()
	if errors.Is(err, registry.ErrUnsupported) {
		return nil, false, &registry.StorageError{Backend: "postgres", Key: key, Op: "get", Err: err}
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

	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, b.table)

	tag, err := b.db.Exec(ctx, query, registry.NormalizeKey(key))
	if err != nil {
		b.logger.WarnContext(ctx, "Failed to delete item", "key", key, "err", handlePostgresError(err))
		return false, nil
	}

	return tag.RowsAffected() > 0, nil
}

// ContainsKey reports whether a row exists for key
func (b *Backend) ContainsKey(ctx context.Context, key string) (bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return false, err
	}

	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE key = $1)`, b.table)

	var exists bool
	if err := b.db.QueryRow(ctx, query, registry.NormalizeKey(key)).Scan(&exists); err != nil {
		b.logger.WarnContext(ctx, "Failed to check item", "key", key, "err", handlePostgresError(err))
		return false, nil
	}

	return exists, nil
}

// Error handling helper
func handlePostgresError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - call Initialize first: %w", err)
		case "42501": // insufficient_privilege
			return fmt.Errorf("insufficient privilege: %w", err)
		default:
			return fmt.Errorf("database error: %s (code: %s): %w", pgErr.Message, pgErr.Code, err)
		}
	}
	return err
}

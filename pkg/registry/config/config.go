package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/tendant/content-registry/pkg/registry"
	"github.com/tendant/content-registry/pkg/registry/storage/cache"
	fsstorage "github.com/tendant/content-registry/pkg/registry/storage/fs"
	memorystorage "github.com/tendant/content-registry/pkg/registry/storage/memory"
	pgstorage "github.com/tendant/content-registry/pkg/registry/storage/postgres"
	s3storage "github.com/tendant/content-registry/pkg/registry/storage/s3"
	sqlitestorage "github.com/tendant/content-registry/pkg/registry/storage/sqlite"
)

// Storage backend types
const (
	StorageMemory   = "memory"
	StorageFS       = "fs"
	StorageS3       = "s3"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		Environment: "development",
		LogLevel:    "info",
		Storage: StorageConfig{
			Type:   StorageMemory,
			Config: map[string]interface{}{},
		},
		EnableEventLogging: true,
	}
}

// Config represents how a registry and its storage backend are assembled
type Config struct {
	Environment string // development, production, testing
	LogLevel    string // debug, info, warn, error

	// Storage configuration
	Storage StorageConfig

	// CacheTTL enables the read-through cache in front of the backend when positive
	CacheTTL time.Duration

	// EnableEventLogging installs a log event sink on the registry
	EnableEventLogging bool

	// Logger is handed to the backends and the registry (default: tint on stderr at LogLevel)
	Logger *slog.Logger
}

// StorageConfig represents configuration for a storage backend
type StorageConfig struct {
	Type   string // "memory", "fs", "s3", "postgres", "sqlite"
	Config map[string]interface{}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.CacheTTL < 0 {
		return errors.New("cache TTL cannot be negative")
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageFS:
		if getString(c.Storage.Config, "base_dir", "") == "" {
			return errors.New("base_dir is required for fs storage")
		}
	case StorageS3:
		if getString(c.Storage.Config, "bucket", "") == "" {
			return errors.New("bucket is required for s3 storage")
		}
	case StoragePostgres:
		if getString(c.Storage.Config, "database_url", "") == "" {
			return errors.New("database_url is required for postgres storage")
		}
	case StorageSQLite:
		if getString(c.Storage.Config, "path", "") == "" {
			return errors.New("path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}

	return nil
}

// BuildStorage creates the configured storage backend, wrapped in the cache
// when CacheTTL is set. The backend is not initialized.
func (c *Config) BuildStorage(ctx context.Context) (registry.Storage, error) {
	storage, err := c.buildStorageBackend(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s storage: %w", c.Storage.Type, err)
	}

	if c.CacheTTL > 0 {
		cached, err := cache.New(storage, cache.Config{TTL: c.CacheTTL, Logger: c.logger()})
		if err != nil {
			closeStorage(storage)
			return nil, fmt.Errorf("failed to build cache: %w", err)
		}
		return cached, nil
	}

	return storage, nil
}

// BuildRegistry creates and initializes a Registry from the configuration.
// Extra options are applied after the configured ones.
func (c *Config) BuildRegistry(ctx context.Context, opts ...registry.Option) (*registry.Registry, error) {
	storage, err := c.BuildStorage(ctx)
	if err != nil {
		return nil, err
	}

	options := []registry.Option{
		registry.WithStorage(storage),
		registry.WithLogger(c.logger()),
	}
	if c.EnableEventLogging {
		options = append(options, registry.WithEventSink(registry.NewLogEventSink(c.logger())))
	}
	options = append(options, opts...)

	r, err := registry.New(options...)
	if err != nil {
		closeStorage(storage)
		return nil, err
	}
	if err := r.Initialize(ctx); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// buildStorageBackend creates a registry.Storage based on the storage configuration
func (c *Config) buildStorageBackend(ctx context.Context) (registry.Storage, error) {
	config := c.Storage.Config

	switch c.Storage.Type {
	case StorageMemory:
		return memorystorage.New(), nil

	case StorageFS:
		return fsstorage.New(fsstorage.Config{
			BaseDir:   getString(config, "base_dir", "./data/registry"),
			Extension: getString(config, "extension", fsstorage.DefaultExtension),
			Logger:    c.logger(),
		})

	case StorageS3:
		return s3storage.New(s3storage.Config{
			Region:                 getString(config, "region", "us-east-1"),
			Bucket:                 getString(config, "bucket", ""),
			Prefix:                 getString(config, "prefix", ""),
			Extension:              getString(config, "extension", s3storage.DefaultExtension),
			AccessKeyID:            getString(config, "access_key_id", ""),
			SecretAccessKey:        getString(config, "secret_access_key", ""),
			Endpoint:               getString(config, "endpoint", ""),
			UsePathStyle:           getBool(config, "use_path_style", false),
			CreateBucketIfNotExist: getBool(config, "create_bucket_if_not_exist", false),
			Logger:                 c.logger(),
		})

	case StoragePostgres:
		return pgstorage.Open(ctx, getString(config, "database_url", ""), pgstorage.Config{
			Table:    getString(config, "table", pgstorage.DefaultTable),
			Schema:   getString(config, "schema", ""),
			MaxConns: int32(getInt(config, "max_conns", 0)),
			Logger:   c.logger(),
		})

	case StorageSQLite:
		return sqlitestorage.Open(getString(config, "path", ""), sqlitestorage.Config{
			Logger: c.logger(),
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}
}

// logger returns Logger, or a stderr console logger at LogLevel when unset
func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return slog.Default()
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    os.Getenv("NO_COLOR") != "",
	}))
}

// ParseLogLevel maps a level name such as "debug" or "WARN" to a slog.Level
func ParseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

func closeStorage(storage registry.Storage) {
	if closer, ok := storage.(io.Closer); ok {
		closer.Close()
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}

func getInt(config map[string]interface{}, key string, defaultValue int) int {
	if value, exists := config[key]; exists {
		if i, ok := value.(int); ok {
			return i
		}
		if str, ok := value.(string); ok {
			if i, err := strconv.Atoi(str); err == nil {
				return i
			}
		}
		if f, ok := value.(float64); ok {
			return int(f)
		}
	}
	return defaultValue
}

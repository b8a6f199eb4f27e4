package config

import (
	"fmt"
	"log/slog"
	"time"
)

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *Config) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithLogLevel sets the log level name
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		if _, err := ParseLogLevel(level); err != nil {
			return err
		}
		c.LogLevel = level
		return nil
	}
}

// WithLogger sets the logger handed to the backends and the registry
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// WithEventLogging enables or disables the log event sink
func WithEventLogging(enabled bool) Option {
	return func(c *Config) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithCache puts the read-through cache in front of the backend
func WithCache(ttl time.Duration) Option {
	return func(c *Config) error {
		if ttl <= 0 {
			return fmt.Errorf("cache TTL must be positive, got: %s", ttl)
		}
		c.CacheTTL = ttl
		return nil
	}
}

// WithStorageURL selects a backend from a connection string in the same
// format as STORAGE_URL
func WithStorageURL(storageURL string) Option {
	return func(c *Config) error {
		return applyStorageURL(storageURL, c)
	}
}

// WithMemoryStorage selects the in-memory backend
func WithMemoryStorage() Option {
	return func(c *Config) error {
		c.Storage = StorageConfig{Type: StorageMemory, Config: map[string]interface{}{}}
		return nil
	}
}

// WithFilesystemStorage selects the filesystem backend.
// An empty extension keeps the backend default.
func WithFilesystemStorage(baseDir, extension string) Option {
	return func(c *Config) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}

		backend := StorageConfig{
			Type: StorageFS,
			Config: map[string]interface{}{
				"base_dir": baseDir,
			},
		}
		if extension != "" {
			backend.Config["extension"] = extension
		}

		c.Storage = backend
		return nil
	}
}

// WithS3Storage selects the S3 backend
func WithS3Storage(bucket, region, prefix string) Option {
	return func(c *Config) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1" // Default region
		}

		backend := StorageConfig{
			Type: StorageS3,
			Config: map[string]interface{}{
				"bucket": bucket,
				"region": region,
			},
		}
		if prefix != "" {
			backend.Config["prefix"] = prefix
		}

		c.Storage = backend
		return nil
	}
}

// WithS3Credentials sets AWS credentials for S3 storage
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *Config) error {
		if c.Storage.Type != StorageS3 {
			return fmt.Errorf("S3 credentials require S3 storage, got: %s", c.Storage.Type)
		}
		c.Storage.Config["access_key_id"] = accessKeyID
		c.Storage.Config["secret_access_key"] = secretAccessKey
		return nil
	}
}

// WithS3Endpoint sets a custom S3 endpoint (for MinIO, LocalStack, etc.)
func WithS3Endpoint(endpoint string, usePathStyle, createBucket bool) Option {
	return func(c *Config) error {
		if c.Storage.Type != StorageS3 {
			return fmt.Errorf("S3 endpoint requires S3 storage, got: %s", c.Storage.Type)
		}
		c.Storage.Config["endpoint"] = endpoint
		c.Storage.Config["use_path_style"] = usePathStyle
		c.Storage.Config["create_bucket_if_not_exist"] = createBucket
		return nil
	}
}

// WithPostgresStorage selects the PostgreSQL backend.
// An empty table keeps the backend default.
func WithPostgresStorage(databaseURL, table string) Option {
	return func(c *Config) error {
		if databaseURL == "" {
			return fmt.Errorf("database URL is required for postgres")
		}

		backend := StorageConfig{
			Type: StoragePostgres,
			Config: map[string]interface{}{
				"database_url": databaseURL,
			},
		}
		if table != "" {
			backend.Config["table"] = table
		}

		c.Storage = backend
		return nil
	}
}

// WithDatabaseSchema sets the search_path for postgres storage
func WithDatabaseSchema(schema string) Option {
	return func(c *Config) error {
		if c.Storage.Type != StoragePostgres {
			return fmt.Errorf("database schema requires postgres storage, got: %s", c.Storage.Type)
		}
		c.Storage.Config["schema"] = schema
		return nil
	}
}

// WithSQLiteStorage selects the SQLite backend
func WithSQLiteStorage(path string) Option {
	return func(c *Config) error {
		if path == "" {
			return fmt.Errorf("sqlite path cannot be empty")
		}
		c.Storage = StorageConfig{
			Type: StorageSQLite,
			Config: map[string]interface{}{
				"path": path,
			},
		}
		return nil
	}
}

// WithDefaults applies the library defaults, discarding earlier options
func WithDefaults() Option {
	return func(c *Config) error {
		*c = defaults()
		return nil
	}
}

// Package cache wraps a registry.Storage with an in-process read-through cache.
package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/tendant/content-registry/pkg/registry"
)

const DefaultExpiration = 10 * time.Minute
const DefaultCleanupInterval = 30 * time.Minute

// Config options for the cache decorator
type Config struct {
	TTL             time.Duration // How long a cached item is served (default: 10m)
	CleanupInterval time.Duration // How often expired entries are purged (default: 30m)
	Logger          *slog.Logger
}

// Backend serves reads from memory and forwards every write to the wrapped
// storage. Writes hold an exclusive lock so a fill can never resurrect an
// item that was just removed.
type Backend struct {
	next   registry.Storage
	cache  *gocache.Cache
	mu     sync.RWMutex
	logger *slog.Logger
}

// New wraps next with a cache
func New(next registry.Storage, config Config) (*Backend, error) {
	if next == nil {
		return nil, fmt.Errorf("%w: wrapped storage is required", registry.ErrInvalidArgument)
	}
	if config.TTL <= 0 {
		config.TTL = DefaultExpiration
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		next:   next,
		cache:  gocache.New(config.TTL, config.CleanupInterval),
		logger: logger,
	}, nil
}

// Initialize initializes the wrapped storage and starts with an empty cache
func (b *Backend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cache.Flush()
	return b.next.Initialize(ctx)
}

func (b *Backend) TryAdd(ctx context.Context, key string, item *registry.Item) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	added, err := b.next.TryAdd(ctx, key, item)
	if err != nil || !added {
		return added, err
	}
	b.cache.SetDefault(registry.NormalizeKey(key), item)
	return true, nil
}

func (b *Backend) TryGet(ctx context.Context, key string) (*registry.Item, bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return nil, false, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	cacheKey := registry.NormalizeKey(key)
	if item, ok := b.get(cacheKey); ok {
		b.logger.DebugContext(ctx, "cache hit", "key", key)
		return item, true, nil
	}

	item, found, err := b.next.TryGet(ctx, key)
	if err != nil || !found {
		return item, found, err
	}
	b.cache.SetDefault(cacheKey, item)
	return item, true, nil
}

func (b *Backend) TryRemove(ctx context.Context, key string) (bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.cache.Delete(registry.NormalizeKey(key))
	return b.next.TryRemove(ctx, key)
}

func (b *Backend) ContainsKey(ctx context.Context, key string) (bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return false, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.get(registry.NormalizeKey(key)); ok {
		return true, nil
	}
	return b.next.ContainsKey(ctx, key)
}

// Len returns the number of cached items, including expired ones not yet purged
func (b *Backend) Len() int {
	return b.cache.ItemCount()
}

// Close drops cached items and closes the wrapped storage when it supports it
func (b *Backend) Close() error {
	b.cache.Flush()
	if closer, ok := b.next.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (b *Backend) get(cacheKey string) (*registry.Item, bool) {
	value, found := b.cache.Get(cacheKey)
	if !found {
		return nil, false
	}
	item, ok := value.(*registry.Item)
	if !ok {
		b.logger.Error("wrong type assertion when getting value", "key", cacheKey)
		return nil, false
	}
	return item, true
}

var _ registry.Storage = (*Backend)(nil)

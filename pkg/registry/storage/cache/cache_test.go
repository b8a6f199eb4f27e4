package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-registry/pkg/registry"
	"github.com/tendant/content-registry/pkg/registry/storage/fs"
	"github.com/tendant/content-registry/pkg/registry/storage/memory"
	"github.com/tendant/content-registry/pkg/registry/storage/storagetest"
)

// countingStorage records how often reads reach the wrapped backend.
type countingStorage struct {
	registry.Storage
	gets     int
	contains int
	closed   bool
}

func (c *countingStorage) TryGet(ctx context.Context, key string) (*registry.Item, bool, error) {
	c.gets++
	return c.Storage.TryGet(ctx, key)
}

func (c *countingStorage) ContainsKey(ctx context.Context, key string) (bool, error) {
	c.contains++
	return c.Storage.ContainsKey(ctx, key)
}

func (c *countingStorage) Close() error {
	c.closed = true
	return nil
}

func newCached(t *testing.T, next registry.Storage, config Config) *Backend {
	t.Helper()
	b, err := New(next, config)
	require.NoError(t, err)
	require.NoError(t, b.Initialize(context.Background()))
	return b
}

func TestCacheBackend_ContractOverMemory(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) registry.Storage {
		return newCached(t, memory.New(), Config{})
	})
}

func TestCacheBackend_ContractOverFS(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) registry.Storage {
		next, err := fs.New(fs.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		return newCached(t, next, Config{})
	})
}

func TestCacheBackend_New(t *testing.T) {
	_, err := New(nil, Config{})
	assert.ErrorIs(t, err, registry.ErrInvalidArgument)
}

func TestCacheBackend_ServesRepeatedReadsFromMemory(t *testing.T) {
	ctx := context.Background()
	next := &countingStorage{Storage: memory.New()}
	b := newCached(t, next, Config{})

	added, err := b.TryAdd(ctx, "Doc", &registry.Item{Name: "Doc", Content: registry.NewTextContent("v")})
	require.NoError(t, err)
	require.True(t, added)
	assert.Equal(t, 1, b.Len())

	for i := 0; i < 3; i++ {
		item, found, err := b.TryGet(ctx, "doc")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Doc", item.Name)

		exists, err := b.ContainsKey(ctx, "DOC")
		require.NoError(t, err)
		assert.True(t, exists)
	}
	assert.Equal(t, 0, next.gets)
	assert.Equal(t, 0, next.contains)
}

func TestCacheBackend_FillsOnMiss(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	_, err := inner.TryAdd(ctx, "pre", &registry.Item{Name: "pre", Content: registry.NewTextContent("existing")})
	require.NoError(t, err)

	next := &countingStorage{Storage: inner}
	b := newCached(t, next, Config{})

	_, found, err := b.TryGet(ctx, "pre")
	require.NoError(t, err)
	require.True(t, found)
	_, found, err = b.TryGet(ctx, "pre")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, next.gets)

	_, found, err = b.TryGet(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, b.Len(), "misses are not cached")
}

func TestCacheBackend_RemoveEvicts(t *testing.T) {
	ctx := context.Background()
	b := newCached(t, memory.New(), Config{})

	_, err := b.TryAdd(ctx, "k", &registry.Item{Name: "k", Content: registry.NewTextContent("v")})
	require.NoError(t, err)

	removed, err := b.TryRemove(ctx, "K")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, b.Len())

	exists, err := b.ContainsKey(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCacheBackend_Expiry(t *testing.T) {
	ctx := context.Background()
	next := &countingStorage{Storage: memory.New()}
	b := newCached(t, next, Config{TTL: 10 * time.Millisecond, CleanupInterval: time.Hour})

	_, err := b.TryAdd(ctx, "k", &registry.Item{Name: "k", Content: registry.NewTextContent("v")})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, found, err := b.TryGet(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, next.gets)
}

func TestCacheBackend_PropagatesErrors(t *testing.T) {
	b := newCached(t, memory.New(), Config{})
	_, err := b.TryAdd(context.Background(), "", &registry.Item{Name: "x", Content: registry.NewTextContent("x")})
	assert.True(t, errors.Is(err, registry.ErrInvalidArgument))
	assert.Equal(t, 0, b.Len())
}

func TestCacheBackend_Close(t *testing.T) {
	next := &countingStorage{Storage: memory.New()}
	b := newCached(t, next, Config{})
	require.NoError(t, b.Close())
	assert.True(t, next.closed)
}

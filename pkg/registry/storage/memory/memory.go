package memory

import (
	"context"
	"sync"

	"github.com/tendant/content-registry/pkg/registry"
)

// Backend is an in-memory implementation of the registry.Storage interface.
// Keys are case-folded; operations on distinct keys do not block each other.
type Backend struct {
	items sync.Map // normalized key -> *registry.Item
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{}
}

// Initialize does nothing for the in-memory backend
func (b *Backend) Initialize(ctx context.Context) error {
	return nil
}

// TryAdd stores a copy of item if key is not already present
func (b *Backend) TryAdd(ctx context.Context, key string, item *registry.Item) (bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return false, err
	}
	if err := registry.CheckItem(item); err != nil {
		return false, err
	}

	stored := *item
	_, loaded := b.items.LoadOrStore(registry.NormalizeKey(key), &stored)
	return !loaded, nil
}

// TryGet returns a copy of the item stored under key
func (b *Backend) TryGet(ctx context.Context, key string) (*registry.Item, bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return nil, false, err
	}

	value, ok := b.items.Load(registry.NormalizeKey(key))
	if !ok {
		return nil, false, nil
	}
	item := *value.(*registry.Item)
	return &item, true, nil
}

// TryRemove deletes the item stored under key
func (b *Backend) TryRemove(ctx context.Context, key string) (bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return false, err
	}

	_, loaded := b.items.LoadAndDelete(registry.NormalizeKey(key))
	return loaded, nil
}

// ContainsKey reports whether key is present
func (b *Backend) ContainsKey(ctx context.Context, key string) (bool, error) {
	if err := registry.CheckKey(key); err != nil {
		return false, err
	}

	_, ok := b.items.Load(registry.NormalizeKey(key))
	return ok, nil
}

package registry

import (
	"context"
)

// Storage defines the contract every persistence backend satisfies.
//
// Blank keys and nil items are caller errors and are reported as errors
// wrapping ErrInvalidArgument. Backend I/O and decode failures are not errors:
// they are reported as a false result so that one damaged record cannot take
// down the registry. A stored kind tag outside the supported set is the one
// data problem reported as an error, wrapping ErrUnsupported.
type Storage interface {
	// Initialize prepares persistent resources. It is called once.
	Initialize(ctx context.Context) error

	// TryAdd stores item under key if the key is absent. It never overwrites.
	TryAdd(ctx context.Context, key string, item *Item) (bool, error)

	// TryGet returns the item stored under key. found is false when the key
	// is absent or the stored payload cannot be rebuilt into a valid item.
	TryGet(ctx context.Context, key string) (item *Item, found bool, err error)

	// TryRemove deletes the item under key and reports whether one existed.
	TryRemove(ctx context.Context, key string) (bool, error)

	// ContainsKey reports whether key exists without loading the item.
	ContainsKey(ctx context.Context, key string) (bool, error)
}

// EventSink receives registry lifecycle notifications
type EventSink interface {
	// ItemRegistered is fired after an item is stored
	ItemRegistered(ctx context.Context, item *Item) error

	// ItemDeregistered is fired after an item is removed
	ItemDeregistered(ctx context.Context, name string) error
}

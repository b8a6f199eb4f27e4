package registry

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrInvalidArgument indicates a caller contract violation such as a blank key
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrBlankContent indicates JSON or XML content that is empty or whitespace only
	ErrBlankContent = fmt.Errorf("%w: content is blank", ErrInvalidArgument)

	// ErrMalformedContent indicates content that fails its structural check
	ErrMalformedContent = fmt.Errorf("%w: content is malformed", ErrInvalidArgument)

	// ErrAlreadyExists indicates an item with the same name is already registered
	ErrAlreadyExists = errors.New("item already exists")

	// ErrNotFound indicates an item was not found
	ErrNotFound = errors.New("item not found")

	// ErrNotInitialized indicates the registry was used before Initialize
	ErrNotInitialized = errors.New("registry not initialized")

	// ErrAlreadyInitialized indicates a second call to Initialize
	ErrAlreadyInitialized = errors.New("registry already initialized")

	// ErrUnsupported indicates a content kind outside the supported set
	ErrUnsupported = errors.New("unsupported content kind")

	// ErrRegistrationFailed indicates the backend refused an add that passed all checks
	ErrRegistrationFailed = errors.New("registration failed")

	// ErrCorruptRecord indicates a persisted record that cannot be decoded
	ErrCorruptRecord = errors.New("corrupt record")
)

// OpError represents an error related to a registry operation
type OpError struct {
	Op   string
	Name string
	Err  error
}

func (e *OpError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("registry operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("registry operation %s failed for item %q: %v", e.Op, e.Name, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %q on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

package registry

import (
	"fmt"
	"strings"
)

// Item is the unit persisted by a Storage backend: a unique name and the
// content registered under it.
type Item struct {
	Name    string
	Content Content
}

// NewItem returns an Item after checking that name is not blank and content
// was produced by a constructor.
func NewItem(name string, content Content) (*Item, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: item name cannot be blank", ErrInvalidArgument)
	}
	if content.IsZero() {
		return nil, fmt.Errorf("%w: item content is required", ErrInvalidArgument)
	}
	return &Item{Name: name, Content: content}, nil
}

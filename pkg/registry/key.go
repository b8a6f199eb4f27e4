package registry

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeKey case-folds key. Every backend applies it before lookup.
// A Caser must not be shared between goroutines, so each call builds its own.
func NormalizeKey(key string) string {
	return cases.Fold().String(key)
}

// CheckKey returns an ErrInvalidArgument error for a blank key.
func CheckKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: key cannot be blank", ErrInvalidArgument)
	}
	return nil
}

// CheckItem returns an ErrInvalidArgument error for a nil or empty item.
func CheckItem(item *Item) error {
	if item == nil {
		return fmt.Errorf("%w: item is required", ErrInvalidArgument)
	}
	if item.Content.IsZero() {
		return fmt.Errorf("%w: item content is required", ErrInvalidArgument)
	}
	return nil
}

// SanitizeFileName replaces every character that is not allowed in a file
// name on common platforms with an underscore. Distinct keys may map to the
// same name.
func SanitizeFileName(key string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		return r
	}, key)
}

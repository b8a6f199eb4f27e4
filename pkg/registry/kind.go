package registry

import (
	"fmt"
	"strings"
)

// Kind identifies the format of a Content value. The numeric values are part
// of the persisted record format and must not change.
type Kind int

const (
	KindJSON Kind = 1
	KindXML  Kind = 2
	KindText Kind = 3
)

// Kinds lists every supported kind in tag order.
var Kinds = []Kind{KindJSON, KindXML, KindText}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindJSON, KindXML, KindText:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindXML:
		return "xml"
	case KindText:
		return "text"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a user-facing name ("json", "XML", "txt") to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return KindJSON, nil
	case "xml":
		return KindXML, nil
	case "text", "txt", "plain":
		return KindText, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupported, s)
}

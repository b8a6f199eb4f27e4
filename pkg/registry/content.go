package registry

import (
	"fmt"
	"strings"
)

// Content is an immutable value pairing raw text with its format. Values are
// only produced by the constructors below, which validate the input first.
// The zero Content has no kind and is never valid.
type Content struct {
	kind Kind
	raw  string
}

// NewContent validates raw against kind and returns the resulting value.
func NewContent(kind Kind, raw string) (Content, error) {
	switch kind {
	case KindJSON, KindXML:
		if strings.TrimSpace(raw) == "" {
			return Content{}, fmt.Errorf("%s: %w", kind, ErrBlankContent)
		}
	case KindText:
		return Content{kind: KindText, raw: raw}, nil
	default:
		return Content{}, fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}

	c := Content{kind: kind, raw: raw}
	if !c.IsValid() {
		return Content{}, fmt.Errorf("%s: %w", kind, ErrMalformedContent)
	}
	return c, nil
}

// NewJSONContent returns JSON content. Only the outermost brackets are checked.
func NewJSONContent(raw string) (Content, error) {
	return NewContent(KindJSON, raw)
}

// NewXMLContent returns XML content. Only the outermost angle brackets are checked.
func NewXMLContent(raw string) (Content, error) {
	return NewContent(KindXML, raw)
}

// NewTextContent returns plain text content. It never fails.
func NewTextContent(raw string) Content {
	return Content{kind: KindText, raw: raw}
}

// Kind returns the content format.
func (c Content) Kind() Kind { return c.kind }

// Raw returns the content exactly as it was supplied.
func (c Content) Raw() string { return c.raw }

// IsZero reports whether c was not produced by a constructor.
func (c Content) IsZero() bool { return c.kind == 0 }

// IsValid re-runs the structural check for the content's kind.
func (c Content) IsValid() bool {
	switch c.kind {
	case KindJSON:
		return JSONValidator{}.Validate(c.raw)
	case KindXML:
		return XMLValidator{}.Validate(c.raw)
	case KindText:
		return true
	}
	return false
}

func (c Content) String() string {
	return fmt.Sprintf("%s(%d bytes)", c.kind, len(c.raw))
}

package registry

import (
	"fmt"
	"strings"
)

// Validator checks raw input against a content format without constructing
// a Content value.
type Validator interface {
	Validate(raw string) bool
}

// JSONValidator performs the shallow outer-bracket check used for JSON content.
type JSONValidator struct{}

func (JSONValidator) Validate(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	return (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"))
}

// XMLValidator performs the shallow angle-bracket check used for XML content.
type XMLValidator struct{}

func (XMLValidator) Validate(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	return strings.HasPrefix(trimmed, "<") && strings.HasSuffix(trimmed, ">")
}

// TextValidator accepts any input, including the empty string.
type TextValidator struct{}

func (TextValidator) Validate(string) bool { return true }

// ValidatorFor returns the validator for kind.
func ValidatorFor(kind Kind) (Validator, error) {
	switch kind {
	case KindJSON:
		return JSONValidator{}, nil
	case KindXML:
		return XMLValidator{}, nil
	case KindText:
		return TextValidator{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, kind)
}

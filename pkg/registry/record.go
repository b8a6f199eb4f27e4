package registry

import (
	"encoding/json"
	"fmt"
)

// Record is the persisted form of an Item used by the file and object-store
// backends. Type holds the numeric Kind tag.
type Record struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Type    Kind   `json:"type"`
}

// EncodeRecord serializes item as indented JSON.
func EncodeRecord(item *Item) ([]byte, error) {
	if err := CheckItem(item); err != nil {
		return nil, err
	}
	rec := Record{
		Name:    item.Name,
		Content: item.Content.Raw(),
		Type:    item.Content.Kind(),
	}
	return json.MarshalIndent(rec, "", "  ")
}

// DecodeRecord rebuilds an Item from its serialized form. A tag outside the
// supported kinds yields ErrUnsupported; anything else that cannot be turned
// back into a valid item yields ErrCorruptRecord.
func DecodeRecord(data []byte) (*Item, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return rec.Item()
}

// Item validates the record and converts it to an Item, with the same error
// classification as DecodeRecord.
func (r Record) Item() (*Item, error) {
	if r.Type == 0 {
		return nil, fmt.Errorf("%w: missing type", ErrCorruptRecord)
	}
	if !r.Type.Valid() {
		return nil, fmt.Errorf("%w: stored type %d", ErrUnsupported, int(r.Type))
	}

	content, err := NewContent(r.Type, r.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	item, err := NewItem(r.Name, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return item, nil
}

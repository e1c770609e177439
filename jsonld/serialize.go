package jsonld

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal encodes doc compactly, preserving key order. Unencodable values
// (notably non-finite floats) fail with [ErrSerialize]; no output ever
// contains NaN or an infinity.
func Marshal(doc *Object) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialize, err)
	}

	return data, nil
}

// MarshalIndent encodes doc with two-space indentation, preserving key
// order.
func MarshalIndent(doc *Object) ([]byte, error) {
	data, err := Marshal(doc)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialize, err)
	}

	return buf.Bytes(), nil
}

// Decode parses previously serialized document bytes back into a generic
// JSON value, for validators and tests that read documents back.
func Decode(data []byte) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialize, err)
	}

	return out, nil
}

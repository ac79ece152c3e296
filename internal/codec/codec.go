// Package codec encodes records as indented JSON documents.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"pracstore/internal/store"
)

// Ext is the file extension used for encoded documents on disk.
const Ext = ".json"

// Serialize encodes v. Encoding a nil value is an error.
func Serialize(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrEncoding, err)
	}
	if isBlank(data) || bytes.Equal(data, []byte("null")) {
		return nil, fmt.Errorf("%w: serialized to empty document", store.ErrEncoding)
	}
	return data, nil
}

// Deserialize decodes a document into a new T. T may be a pointer type, in
// which case the pointee is allocated.
func Deserialize[T any](data []byte) (T, error) {
	var out T
	if isBlank(data) {
		return out, fmt.Errorf("%w: empty document", store.ErrEncoding)
	}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return out, fmt.Errorf("%w: null document", store.ErrEncoding)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: %v", store.ErrEncoding, err)
	}
	return out, nil
}

// Clone returns a deep copy of v by encoding round trip.
func Clone[T any](v T) (T, error) {
	data, err := Serialize(v)
	if err != nil {
		var zero T
		return zero, err
	}
	return Deserialize[T](data)
}

func isBlank(data []byte) bool {
	return len(bytes.TrimSpace(data)) == 0
}

// Package serialization provides helpers for the JSON-typed columns Granary
// persists alongside relational rows (record errors, payloads, passthrough
// query fields).
package serialization

import (
	"encoding/json"

	"github.com/orbitalworks/granary/pkg/granary/support/util/exception"
)

const moduleName = "serialization"

// MarshalJSONMap serializes a map into a JSON byte slice.
// A nil map serializes to an empty JSON object so the column never holds NULL-vs-{} ambiguity.
func MarshalJSONMap(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, exception.NewWriteError(moduleName, "failed to serialize map", err)
	}
	return data, nil
}

// UnmarshalJSONMap deserializes a JSON byte slice into a map.
// Empty input yields an empty map.
func UnmarshalJSONMap(data []byte, m *map[string]interface{}) error {
	if len(data) == 0 {
		*m = make(map[string]interface{})
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return exception.NewWriteError(moduleName, "failed to deserialize map", err)
	}
	return nil
}

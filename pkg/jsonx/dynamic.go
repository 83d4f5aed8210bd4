// Package jsonx converts between typed values and the untyped JSON shapes
// provider SDKs expect.
package jsonx

import (
	"fmt"

	"github.com/goccy/go-json"
)

// ToDynamicJSON round-trips val through JSON into a map. Values that do not
// encode to a JSON object are an error.
func ToDynamicJSON(val any) (map[string]any, error) {
	b, err := json.Marshal(val)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", val, err)
	}
	var result map[string]any
	if err := json.Unmarshal(b, &result); err != nil {
		return nil, fmt.Errorf("decode %T as object: %w", val, err)
	}
	if result == nil {
		result = map[string]any{}
	}
	return result, nil
}

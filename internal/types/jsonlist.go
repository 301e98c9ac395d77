package types

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// StringListJSON encodes a string slice for a jsonb list column. A nil slice
// becomes an empty array, never null, so list fields always decode cleanly.
func StringListJSON(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	b, _ := json.Marshal(values)
	return datatypes.JSON(b)
}

// StringListValues decodes a jsonb list column back into a slice.
func StringListValues(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return []string{}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

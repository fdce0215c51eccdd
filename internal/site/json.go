package site

import (
	"encoding/json"
	"fmt"
)

// MarshalInline encodes v as a JSON object and merges extra into it at the
// top level. Keys already produced by v win over extra.
func MarshalInline(v any, extra map[string]any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("site: inline into non-object: %w", err)
	}
	for k, x := range extra {
		if _, ok := fields[k]; ok {
			continue
		}
		raw, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("site: marshal %q: %w", k, err)
		}
		fields[k] = raw
	}
	return json.Marshal(fields)
}

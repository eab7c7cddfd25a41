package policy

import (
	"encoding/json"
	"strings"
)

// lookup walks a dot separated path such as "record.payload.species".
func lookup(obj map[string]any, path string) (any, bool) {
	var current any = obj
	for _, k := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// toMap flattens ctx into the shape a policy author sees: json names,
// nested records as maps, numbers as float64.
func toMap(ctx RequestContext) (map[string]any, error) {
	raw, err := json.Marshal(ctx)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

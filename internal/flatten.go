package internal

import "fmt"

// Flatten collapses a nested map into a single level. Nested keys are
// joined with ".", array elements get "[i]" suffixes, and every array
// also exposes a numeric "<path>.length" key for use in rule
// expressions.
//
// For example, {"a": {"b": 1}} becomes {"a.b": 1}.
func Flatten(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for key, value := range data {
		flattenInto(out, key, value)
	}
	return out
}

func flattenInto(out map[string]interface{}, path string, value interface{}) {
	switch typed := value.(type) {
	case map[string]interface{}:
		for key, child := range typed {
			flattenInto(out, fmt.Sprintf("%s.%s", path, key), child)
		}
	case []interface{}:
		out[path] = typed
		out[path+".length"] = float64(len(typed))
		for i, child := range typed {
			flattenInto(out, fmt.Sprintf("%s[%d]", path, i), child)
		}
	default:
		out[path] = value
	}
}

package plan

// AsMap converts YAML-decoded map values into map[string]any.
// It accepts map[string]any and map[any]any and skips non-string keys.
func AsMap(value any) map[string]any {
	switch typed := value.(type) {
	case map[string]any:
		return typed
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, val := range typed {
			name, ok := key.(string)
			if !ok {
				continue
			}
			out[name] = val
		}
		return out
	default:
		return map[string]any{}
	}
}

// AsSlice converts YAML-decoded sequence values into []any.
func AsSlice(value any) []any {
	if typed, ok := value.([]any); ok {
		return typed
	}
	return nil
}

// Normalize rewrites a YAML-decoded value into one encoding/json can
// marshal: every nested map becomes map[string]any.
func Normalize(value any) any {
	switch value.(type) {
	case map[string]any, map[any]any:
		in := AsMap(value)
		out := make(map[string]any, len(in))
		for key, val := range in {
			out[key] = Normalize(val)
		}
		return out
	case []any:
		in := AsSlice(value)
		out := make([]any, len(in))
		for i, val := range in {
			out[i] = Normalize(val)
		}
		return out
	default:
		return value
	}
}

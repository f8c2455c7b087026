package config

// DeepMerge merges override into base recursively and returns a new map;
// neither input is modified. When both sides hold a mapping under the
// same key the mappings merge; any other value kind is replaced
// wholesale, never concatenated.
func DeepMerge(base, override map[string]any) map[string]any {
	result := deepCopy(base)

	for key, value := range override {
		if existing, ok := result[key].(map[string]any); ok {
			if overlay, ok := value.(map[string]any); ok {
				result[key] = DeepMerge(existing, overlay)
				continue
			}
		}
		result[key] = copyValue(value)
	}

	return result
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

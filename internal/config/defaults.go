package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Defaults returns a fresh copy of the compiled-in configuration. The
// embedded document is validated by TestBuiltinDefaults; a malformed
// embed is a build defect, hence the panic.
func Defaults() map[string]any {
	var m map[string]any
	if err := yaml.Unmarshal(builtinYAML, &m); err != nil {
		panic(fmt.Sprintf("config: embedded defaults are malformed: %v", err))
	}
	return normalize(m)
}

// normalize converts YAML-flavored values into the shapes the JSON layers
// produce, so DeepMerge sees a uniform tree.
func normalize(v map[string]any) map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = normalizeValue(val)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalize(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}

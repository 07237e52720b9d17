package policy

import (
	"strings"
)

// resolveDotNotation walks nested maps along a dotted key like "this.owner".
func resolveDotNotation(obj map[string]any, key string) (any, bool) {
	var current any = obj
	for _, k := range strings.Split(key, ".") {
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

package parser

import (
	"log/slog"
	"sort"
)

// rule runs one extraction step. A panic inside fn is logged and the
// fallback is returned so the remaining fields still get filled in.
func rule[T any](name string, fallback T, fn func() T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Extraction rule failed", "rule", name, "panic", r)
			out = fallback
		}
	}()
	return fn()
}

func sortedUnique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

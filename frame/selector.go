package frame

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Selector resolves to a set of flattened record keys.
// It models the four forms the `metrics`/`attributes` config entries may
// take: absent (zero value, Explicit=false, None=false, Keys=nil), a single
// key or pattern, a list of keys/patterns, or the explicit `None` sentinel.
type Selector struct {
	Explicit bool     // true if the YAML document named this key at all
	None     bool     // explicit `None` value
	Keys     []string // one or more literal keys or glob patterns
}

// ParseSelector interprets a decoded YAML value for a `metrics` or
// `attributes` entry.
func ParseSelector(raw any) (Selector, error) {
	if raw == nil {
		return Selector{}, nil
	}
	switch v := raw.(type) {
	case string:
		if strings.EqualFold(v, "none") {
			return Selector{Explicit: true, None: true}, nil
		}
		return Selector{Explicit: true, Keys: []string{v}}, nil
	case []any:
		keys := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return Selector{}, fmt.Errorf("selector list entries must be strings, got %T", item)
			}
			keys = append(keys, s)
		}
		return Selector{Explicit: true, Keys: keys}, nil
	case []string:
		return Selector{Explicit: true, Keys: v}, nil
	default:
		return Selector{}, fmt.Errorf("unsupported selector value type %T", raw)
	}
}

// isPattern reports whether a key uses glob syntax.
func isPattern(key string) bool {
	return strings.ContainsAny(key, "*?[")
}

// Flatten projects a (possibly nested) record into a flat map keyed by
// dotted paths using sep as the nested-attribute separator (default ".").
// Non-map leaf values (including slices) are kept as-is.
func Flatten(record map[string]any, sep string) map[string]Scalar {
	out := make(map[string]Scalar)
	flattenInto(record, "", sep, out)
	return out
}

func flattenInto(m map[string]any, prefix, sep string, out map[string]Scalar) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + sep + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(nested, path, sep, out)
			continue
		}
		out[path] = v
	}
}

// Expand resolves a Selector against a flattened key set, returning the
// matched keys in deterministic order: keys are matched in the order the
// selector lists them, and pattern matches are appended in sorted key
// order so output is stable across runs.
func Expand(sel Selector, flat map[string]Scalar) ([]string, error) {
	if sel.None || !sel.Explicit && len(sel.Keys) == 0 {
		return nil, nil
	}
	sortedKeys := make([]string, 0, len(flat))
	for k := range flat {
		sortedKeys = append(sortedKeys, k)
	}
	sort.Strings(sortedKeys)

	seen := make(map[string]bool)
	var out []string
	for _, key := range sel.Keys {
		if !isPattern(key) {
			if _, ok := flat[key]; ok && !seen[key] {
				seen[key] = true
				out = append(out, key)
			}
			continue
		}
		g, err := glob.Compile(key, '.')
		if err != nil {
			return nil, fmt.Errorf("invalid selector pattern %q: %w", key, err)
		}
		for _, fk := range sortedKeys {
			if seen[fk] {
				continue
			}
			if g.Match(fk) {
				seen[fk] = true
				out = append(out, fk)
			}
		}
	}
	return out, nil
}

// Complement returns every flattened key not present in exclude.
func Complement(flat map[string]Scalar, exclude []string) []string {
	ex := make(map[string]bool, len(exclude))
	for _, k := range exclude {
		ex[k] = true
	}
	out := make([]string, 0, len(flat))
	for k := range flat {
		if !ex[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// MatchesAny reports whether name matches at least one glob pattern in
// patterns.
func MatchesAny(name string, patterns []string) (bool, error) {
	for _, p := range patterns {
		g, err := glob.Compile(p, '.')
		if err != nil {
			return false, fmt.Errorf("invalid filter pattern %q: %w", p, err)
		}
		if g.Match(name) {
			return true, nil
		}
	}
	return false, nil
}

package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Biscgit/streamlet/streamleterr"
)

// suggestionThreshold is the maximum Damerau-Levenshtein distance at which
// an unknown key is offered a "did you mean" suggestion.
const suggestionThreshold = 2

// Validate walks value against node, accumulating errors into errs and
// returning the normalized value (defaults synthesized, scalars coerced to
// their canonical Go types). path is the dotted/indexed location built up
// so far, e.g. "[input][2][tasks][1]".
func Validate(node Node, value any, path string, errs *streamleterr.ConfigErrors) any {
	switch n := node.(type) {
	case Any:
		return value
	case Scalar:
		return validateScalar(n, value, path, errs)
	case ListNode:
		return validateList(n, value, path, errs)
	case MapNode:
		return validateMap(n, value, path, errs)
	case Obj:
		return validateObj(n, value, path, errs)
	case Union:
		return validateUnion(n, value, path, errs)
	default:
		errs.Add(path, fmt.Sprintf("internal: unknown schema node type %T", node))
		return value
	}
}

func validateScalar(s Scalar, value any, path string, errs *streamleterr.ConfigErrors) any {
	if value == nil {
		errs.Add(path, fmt.Sprintf("expected %s, got nothing", s.Kind))
		return nil
	}
	switch s.Kind {
	case KindString:
		if str, ok := value.(string); ok {
			return str
		}
		errs.Add(path, fmt.Sprintf("expected string, got %T", value))
	case KindInt:
		switch v := value.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			if v == float64(int(v)) {
				return int(v)
			}
			errs.Add(path, fmt.Sprintf("expected int, got non-integral float %v", v))
		default:
			errs.Add(path, fmt.Sprintf("expected int, got %T", value))
		}
	case KindFloat:
		switch v := value.(type) {
		case float64:
			return v
		case int:
			return float64(v)
		default:
			errs.Add(path, fmt.Sprintf("expected float, got %T", value))
		}
	case KindBool:
		if b, ok := value.(bool); ok {
			return b
		}
		errs.Add(path, fmt.Sprintf("expected bool, got %T", value))
	case KindDuration:
		d, err := ParseDuration(value)
		if err != nil {
			errs.Add(path, err.Error())
			return nil
		}
		return d
	case KindCron:
		str, ok := value.(string)
		if !ok {
			errs.Add(path, fmt.Sprintf("expected cron string, got %T", value))
			return nil
		}
		if _, err := cron.ParseStandard(str); err != nil {
			errs.Add(path, fmt.Sprintf("invalid cron expression %q: %s", str, err))
			return nil
		}
		return str
	default:
		errs.Add(path, fmt.Sprintf("internal: unknown scalar kind %q", s.Kind))
	}
	return nil
}

// ParseDuration accepts an int (seconds) or a string "<n>{s|m|h|d}" per
// the document schema.
func ParseDuration(value any) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v) * time.Second, nil
	case string:
		if v == "" {
			return 0, fmt.Errorf("empty duration string")
		}
		unit := v[len(v)-1]
		var mult time.Duration
		numPart := v
		switch unit {
		case 's':
			mult = time.Second
			numPart = v[:len(v)-1]
		case 'm':
			mult = time.Minute
			numPart = v[:len(v)-1]
		case 'h':
			mult = time.Hour
			numPart = v[:len(v)-1]
		case 'd':
			mult = 24 * time.Hour
			numPart = v[:len(v)-1]
		default:
			// bare integer string means seconds
			mult = time.Second
		}
		n, err := strconv.ParseFloat(numPart, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %s", v, err)
		}
		return time.Duration(n * float64(mult)), nil
	default:
		return 0, fmt.Errorf("expected duration (int seconds or string like \"10s\"), got %T", value)
	}
}

func validateList(n ListNode, value any, path string, errs *streamleterr.ConfigErrors) any {
	items, ok := toSlice(value)
	if !ok {
		errs.Add(path, fmt.Sprintf("expected a list, got %T", value))
		return nil
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = Validate(n.Elem, item, fmt.Sprintf("%s[%d]", path, i), errs)
	}
	return out
}

func toSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case nil:
		return nil, true
	default:
		return nil, false
	}
}

func validateMap(n MapNode, value any, path string, errs *streamleterr.ConfigErrors) any {
	m, ok := toMap(value)
	if !ok {
		errs.Add(path, fmt.Sprintf("expected a map, got %T", value))
		return nil
	}
	out := make(map[string]any, len(m))
	keys := sortedKeys(m)
	for _, k := range keys {
		out[k] = Validate(n.Elem, m[k], fmt.Sprintf("%s[%s]", path, k), errs)
	}
	return out
}

func toMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case nil:
		return map[string]any{}, true
	default:
		return nil, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// validateObj implements object validation: missing required
// keys, unknown extra keys (with fuzzy suggestion), per-field validation,
// and default synthesis when the whole map is absent and all fields are
// Optional.
func validateObj(n Obj, value any, path string, errs *streamleterr.ConfigErrors) any {
	if value == nil {
		if n.AllOptional() {
			return SynthesizeDefaults(n)
		}
		errs.Add(path, "required object is missing")
		return nil
	}
	m, ok := toMap(value)
	if !ok {
		errs.Add(path, fmt.Sprintf("expected an object, got %T", value))
		return nil
	}

	expectedKeys := make([]string, len(n.Fields))
	fieldByKey := make(map[string]Field, len(n.Fields))
	for i, f := range n.Fields {
		expectedKeys[i] = f.Key
		fieldByKey[f.Key] = f
	}

	out := make(map[string]any, len(n.Fields))
	for _, f := range n.Fields {
		raw, present := m[f.Key]
		fieldPath := joinPath(path, f.Key)
		switch {
		case present:
			out[f.Key] = Validate(f.Node, raw, fieldPath, errs)
		case f.Required:
			errs.Add(fieldPath, fmt.Sprintf("missing required key %q", f.Key))
		default:
			out[f.Key] = f.Default
		}
	}

	for k, v := range m {
		if _, known := fieldByKey[k]; known {
			continue
		}
		suggestion := closestKey(k, expectedKeys)
		example := exampleFor(fieldByKey, suggestion)
		errs.AddSuggestion(joinPath(path, k), fmt.Sprintf("unknown key %q", k), suggestion, example)
		_ = v
	}

	return out
}

func joinPath(path, key string) string {
	if path == "" {
		return "[" + key + "]"
	}
	return path + "[" + key + "]"
}

func exampleFor(fields map[string]Field, key string) any {
	if key == "" {
		return nil
	}
	return fields[key].Default
}

// SynthesizeDefaults builds a map purely from an Obj's Optional defaults,
// used both when a top-level key is wholly absent and for the first
// all-optional Union branch.
func SynthesizeDefaults(n Obj) map[string]any {
	out := make(map[string]any, len(n.Fields))
	for _, f := range n.Fields {
		out[f.Key] = f.Default
	}
	return out
}

// validateUnion implements union resolution: the branch with
// the most matched required keys wins; ties prefer earlier branches. If no
// branch has any required-key overlap and value is nil, the first
// all-optional branch's defaults are synthesized.
func validateUnion(u Union, value any, path string, errs *streamleterr.ConfigErrors) any {
	if value == nil {
		for _, b := range u.Branches {
			if obj, ok := b.(Obj); ok && obj.AllOptional() {
				return SynthesizeDefaults(obj)
			}
		}
	}

	m, isMap := toMap(value)
	bestIdx, bestScore := -1, -1
	for i, b := range u.Branches {
		obj, ok := b.(Obj)
		if !ok || !isMap {
			continue
		}
		score := 0
		for _, f := range obj.Fields {
			if f.Required {
				if _, present := m[f.Key]; present {
					score++
				}
			}
		}
		if score > bestScore {
			bestScore, bestIdx = score, i
		}
	}

	if bestIdx >= 0 && bestScore > 0 {
		return Validate(u.Branches[bestIdx], value, path, errs)
	}

	// No branch matched at all: report each branch's first mismatch.
	var branchErrs streamleterr.ConfigErrors
	messages := make([]string, 0, len(u.Branches))
	for i, b := range u.Branches {
		var sub streamleterr.ConfigErrors
		Validate(b, value, path, &sub)
		if sub.Len() > 0 {
			messages = append(messages, fmt.Sprintf("branch %d: %s", i, sub.ErrOrNil()))
		}
	}
	_ = branchErrs
	errs.Add(path, fmt.Sprintf("value matches no union branch: %s", strings.Join(messages, "; ")))
	return value
}

// ClosestMatch is the exported form of closestKey, used outside this
// package wherever a resolved identifier (e.g. a module type) needs a
// "did you mean" suggestion against a candidate set.
func ClosestMatch(key string, candidates []string) string {
	return closestKey(key, candidates)
}

// closestKey returns the candidate in candidates whose Damerau-Levenshtein
// distance from key is smallest and within suggestionThreshold, or "" if
// none qualifies.
func closestKey(key string, candidates []string) string {
	best, bestDist := "", suggestionThreshold+1
	for _, c := range candidates {
		d := damerauLevenshtein(key, c)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist > suggestionThreshold {
		return ""
	}
	return best
}

// damerauLevenshtein computes the optimal string alignment distance
// between a and b, counting insertions, deletions, substitutions, and
// adjacent transpositions as single edits.
func damerauLevenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)

	d := make([][]int, la+1)
	for i := range d {
		d[i] = make([]int, lb+1)
		d[i][0] = i
	}
	for j := 0; j <= lb; j++ {
		d[0][j] = j
	}

	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := d[i-1][j] + 1
			ins := d[i][j-1] + 1
			sub := d[i-1][j-1] + cost
			best := del
			if ins < best {
				best = ins
			}
			if sub < best {
				best = sub
			}
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				if t := d[i-2][j-2] + cost; t < best {
					best = t
				}
			}
			d[i][j] = best
		}
	}
	return d[la][lb]
}

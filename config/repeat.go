package config

import (
	"fmt"
	"strconv"
	"strings"
)

// expandRepeatFor expands every task carrying a
// `repeat_for` map is cloned once per index of its (equal-length) value
// lists, substituting `$variable` and `$i` tokens through every string
// field of the clone (including nested params).
func expandRepeatFor(doc map[string]any) error {
	for _, section := range []string{"inputs"} {
		list := asList(doc[section])
		for i, item := range list {
			mod := asMap(item)
			if mod == nil {
				continue
			}
			tasks := asList(mod["tasks"])
			expanded, err := expandTaskList(tasks)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", section, i, err)
			}
			mod["tasks"] = expanded
		}
	}
	return nil
}

func expandTaskList(tasks []any) ([]any, error) {
	out := make([]any, 0, len(tasks))
	for ti, item := range tasks {
		task := asMap(item)
		if task == nil {
			out = append(out, item)
			continue
		}
		repeatRaw, has := task["repeat_for"]
		if !has || repeatRaw == nil {
			out = append(out, item)
			continue
		}
		repeatMap := asMap(repeatRaw)
		clones, err := expandOneTask(task, repeatMap)
		if err != nil {
			return nil, fmt.Errorf("tasks[%d]: %w", ti, err)
		}
		out = append(out, clones...)
	}
	return out, nil
}

func expandOneTask(task map[string]any, repeatFor map[string]any) ([]any, error) {
	if len(repeatFor) == 0 {
		return nil, fmt.Errorf("repeat_for must declare at least one variable")
	}

	var length = -1
	vars := make([]string, 0, len(repeatFor))
	values := make(map[string][]any, len(repeatFor))
	for v, raw := range repeatFor {
		vals := asList(raw)
		if vals == nil {
			return nil, fmt.Errorf("repeat_for[%s] must be a list", v)
		}
		if length == -1 {
			length = len(vals)
		} else if len(vals) != length {
			return nil, fmt.Errorf("repeat_for lists must have equal length: %q has %d, expected %d", v, len(vals), length)
		}
		vars = append(vars, v)
		values[v] = vals
	}

	origName, _ := task["name"].(string)
	if !referencesVariable(origName, vars) {
		return nil, fmt.Errorf("repeat_for task name %q must reference at least one repeat_for variable (or $i) to produce a unique name", origName)
	}

	clones := make([]any, 0, length)
	for i := 0; i < length; i++ {
		subst := map[string]string{"i": strconv.Itoa(i)}
		for _, v := range vars {
			subst[v] = scalarToString(values[v][i])
		}
		clone := deepCopy(task).(map[string]any)
		delete(clone, "repeat_for")
		substituteTree(clone, subst)
		clones = append(clones, clone)
	}
	return clones, nil
}

func referencesVariable(s string, vars []string) bool {
	if strings.Contains(s, "$i") {
		return true
	}
	for _, v := range vars {
		if strings.Contains(s, "$"+v) {
			return true
		}
	}
	return false
}

// substituteTree walks every string leaf in v, replacing `$var` tokens
// with the resolved values for this clone index. Longer variable names are
// substituted first so "$table" doesn't get clobbered by a "$t" match.
func substituteTree(v any, subst map[string]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if s, ok := val.(string); ok {
				t[k] = substituteString(s, subst)
			} else {
				substituteTree(val, subst)
			}
		}
	case []any:
		for i, val := range t {
			if s, ok := val.(string); ok {
				t[i] = substituteString(s, subst)
			} else {
				substituteTree(val, subst)
			}
		}
	}
}

func substituteString(s string, subst map[string]string) string {
	names := make([]string, 0, len(subst))
	for k := range subst {
		names = append(names, k)
	}
	// Longest-first so "$i" doesn't partially match inside a longer token
	// during naive sequential replacement.
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if len(names[j]) > len(names[i]) {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	for _, name := range names {
		s = strings.ReplaceAll(s, "$"+name, subst[name])
	}
	return s
}

func scalarToString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return yamlScalarString(v)
	}
}

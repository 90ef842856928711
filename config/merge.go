package config

// mergeOverlay applies overlay's fields on top of base, implementing
// merging rule: scalar/map keys have overlay win; `inputs`,
// `transforms`, `outputs` (and each input's `tasks`) are merged by `name`
// -- matching entries are shallow-merged with overlay's keys overriding
// base's, unmatched entries are appended, and unnamed entries are always
// appended verbatim.
func mergeOverlay(base, overlay map[string]any) map[string]any {
	out, _ := deepCopy(base).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	for k, v := range overlay {
		switch k {
		case "inputs", "transforms", "outputs":
			out[k] = mergeNamedList(asList(out[k]), asList(v))
		case "flow":
			out[k] = mergeFlowBlock(asMap(out[k]), asMap(v))
		case "env":
			out[k] = mergeShallow(asMap(out[k]), asMap(v))
		default:
			out[k] = deepCopy(v)
		}
	}
	return out
}

// mergeFlowBlock merges the `flow:` block: `settings` is merged shallowly
// (overlay wins per key), everything else (version, extends) is overlay-wins.
func mergeFlowBlock(base, overlay map[string]any) map[string]any {
	out := mergeShallow(base, overlay)
	if _, hasSettings := overlay["settings"]; hasSettings {
		out["settings"] = mergeShallow(asMap(base["settings"]), asMap(overlay["settings"]))
	}
	return out
}

func mergeShallow(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = deepCopy(v)
	}
	for k, v := range overlay {
		out[k] = deepCopy(v)
	}
	return out
}

// mergeNamedList merges two lists of module/task entries by their `name`
// key. A module entry's nested `tasks` list is
// itself merged by name, one level deep.
func mergeNamedList(base, overlay []any) []any {
	out := make([]any, len(base))
	copy(out, base)

	index := make(map[string]int, len(out))
	for i, item := range out {
		if name, ok := entryName(item); ok {
			index[name] = i
		}
	}

	for _, item := range overlay {
		name, named := entryName(item)
		if !named {
			out = append(out, deepCopy(item))
			continue
		}
		if idx, exists := index[name]; exists {
			out[idx] = mergeEntry(asMap(out[idx]), asMap(item))
			continue
		}
		index[name] = len(out)
		out = append(out, deepCopy(item))
	}
	return out
}

// mergeEntry shallow-merges one module/task map: overlay keys override
// base keys, except `tasks`, which recurses into mergeNamedList.
func mergeEntry(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = deepCopy(v)
	}
	for k, v := range overlay {
		if k == "tasks" {
			out[k] = mergeNamedList(asList(out[k]), asList(v))
			continue
		}
		out[k] = deepCopy(v)
	}
	return out
}

func entryName(item any) (string, bool) {
	m, ok := item.(map[string]any)
	if !ok {
		return "", false
	}
	name, ok := m["name"].(string)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

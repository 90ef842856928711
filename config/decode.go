package config

import (
	"fmt"

	"github.com/Biscgit/streamlet/schema"
)

// decodeDocument converts the generically-validated raw tree into a typed
// Document. It assumes documentSchema() has already run (so required keys
// are present and defaults are synthesized); it still defends against
// malformed shapes defensively since decode also runs on hand-built trees
// in tests.
func decodeDocument(raw map[string]any) (*Document, error) {
	doc := &Document{}

	flowRaw := asMap(raw["flow"])
	doc.Flow = Flow{
		Version:  getString(flowRaw, "version"),
		Settings: asMap(flowRaw["settings"]),
	}
	for _, e := range asList(flowRaw["extends"]) {
		if s, ok := e.(string); ok {
			doc.Flow.Extends = append(doc.Flow.Extends, s)
		}
	}

	doc.Env = map[string]string{}
	for k, v := range asMap(raw["env"]) {
		doc.Env[k] = scalarToString(v)
	}

	var err error
	if doc.Inputs, err = decodeModules(asList(raw["inputs"]), true); err != nil {
		return nil, err
	}
	if doc.Transforms, err = decodeModules(asList(raw["transforms"]), false); err != nil {
		return nil, err
	}
	if doc.Outputs, err = decodeModules(asList(raw["outputs"]), false); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeModules(items []any, isInput bool) ([]Module, error) {
	out := make([]Module, 0, len(items))
	for i, item := range items {
		m := asMap(item)
		mod := Module{
			Type:       getString(m, "type"),
			Name:       getString(m, "name"),
			Enabled:    getBool(m, "enabled", true),
			Connection: asMap(m["connection"]),
		}
		if isInput {
			tasks, err := decodeTasks(asList(m["tasks"]))
			if err != nil {
				return nil, fmt.Errorf("inputs[%d] (%s): %w", i, mod.Name, err)
			}
			mod.Tasks = tasks
		} else {
			mod.Params = asMap(m["params"])
			mod.Priority = intOf(m["priority"])
			mod.IncludeTasks = stringsOf(m["include_tasks"])
			mod.IncludeInputs = stringsOf(m["include_inputs"])
			mod.ExcludeTasks = stringsOf(m["exclude_tasks"])
			mod.ExcludeInputs = stringsOf(m["exclude_inputs"])
		}
		out = append(out, mod)
	}
	return out, nil
}

func decodeTasks(items []any) ([]Task, error) {
	out := make([]Task, 0, len(items))
	for i, item := range items {
		m := asMap(item)
		t := Task{
			Name:             getString(m, "name"),
			Cron:             getString(m, "cron"),
			StaticAttributes: asMap(m["static_attributes"]),
			MaxRetries:       intOf(m["max_retries"]),
			Params:           asMap(m["params"]),
		}
		if resultRaw := m["result"]; resultRaw != nil {
			rm := asMap(resultRaw)
			t.Result = ResultSpec{Metrics: rm["metrics"], Attributes: rm["attributes"]}
		}

		delay, err := schema.ParseDuration(defaultIfNil(m["retry_delay"], "10s"))
		if err != nil {
			return nil, fmt.Errorf("tasks[%d] (%s): retry_delay: %w", i, t.Name, err)
		}
		t.RetryDelay = delay
		if t.MaxRetries == 0 && m["max_retries"] == nil {
			t.MaxRetries = 2
		}

		if modsRaw := m["modifiers"]; modsRaw != nil {
			mm := asMap(modsRaw)
			if v, ok := mm["time_offset"]; ok {
				d, err := schema.ParseDuration(v)
				if err != nil {
					return nil, fmt.Errorf("tasks[%d] (%s): modifiers.time_offset: %w", i, t.Name, err)
				}
				t.Modifiers.TimeOffset, t.Modifiers.HasOffset = d, true
			}
			if v, ok := mm["time_modulus"]; ok {
				d, err := schema.ParseDuration(v)
				if err != nil {
					return nil, fmt.Errorf("tasks[%d] (%s): modifiers.time_modulus: %w", i, t.Name, err)
				}
				if d <= 0 {
					return nil, fmt.Errorf("tasks[%d] (%s): modifiers.time_modulus must be positive", i, t.Name)
				}
				t.Modifiers.TimeModulus, t.Modifiers.HasModulus = d, true
			}
		}

		if rf := m["repeat_for"]; rf != nil {
			t.RepeatFor = map[string][]any{}
			for k, v := range asMap(rf) {
				t.RepeatFor[k] = asList(v)
			}
		}

		out = append(out, t)
	}
	return out, nil
}

func defaultIfNil(v any, def any) any {
	if v == nil {
		return def
	}
	return v
}

func intOf(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}

func stringsOf(v any) []string {
	l := asList(v)
	if l == nil {
		return nil
	}
	out := make([]string, 0, len(l))
	for _, item := range l {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

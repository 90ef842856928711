package config

import "github.com/Biscgit/streamlet/schema"

// documentSchema describes the generic shape of the configuration document.
// Module-specific `connection`/`params` shapes are validated separately
// against each registered module type's own schema; here they are
// schema.Any so the generic pass only checks structure common to every
// module. defaultEnabled is the synthesized
// default for every module's `enabled` key, flipped to false by the
// `disable_default` setting so all modules default to disabled until
// explicitly enabled. Tasks have no `enabled` key; they run whenever their
// input is enabled.
func documentSchema(defaultEnabled bool) schema.Obj {
	return schema.Obj{Fields: []schema.Field{
		schema.Required("flow", flowSchema()),
		schema.Optional("env", schema.MapNode{Elem: schema.Scalar{Kind: schema.KindString}}, map[string]any{}),
		schema.Optional("inputs", schema.ListNode{Elem: moduleSchema(true, defaultEnabled)}, []any{}),
		schema.Optional("transforms", schema.ListNode{Elem: moduleSchema(false, defaultEnabled)}, []any{}),
		schema.Optional("outputs", schema.ListNode{Elem: moduleSchema(false, defaultEnabled)}, []any{}),
	}}
}

func flowSchema() schema.Node {
	return schema.Obj{Fields: []schema.Field{
		schema.Required("version", schema.Scalar{Kind: schema.KindString}),
		schema.Optional("extends", schema.ListNode{Elem: schema.Scalar{Kind: schema.KindString}}, []any{}),
		schema.Optional("settings", schema.MapNode{Elem: schema.Any{}}, map[string]any{}),
	}}
}

func moduleSchema(isInput, defaultEnabled bool) schema.Node {
	fields := []schema.Field{
		schema.Required("type", schema.Scalar{Kind: schema.KindString}),
		schema.Optional("name", schema.Scalar{Kind: schema.KindString}, ""),
		schema.Optional("enabled", schema.Scalar{Kind: schema.KindBool}, defaultEnabled),
		schema.Optional("connection", schema.Any{}, map[string]any{}),
	}
	if isInput {
		fields = append(fields, schema.Optional("tasks", schema.ListNode{Elem: taskSchema()}, []any{}))
	} else {
		fields = append(fields,
			schema.Optional("params", schema.Any{}, map[string]any{}),
			schema.Optional("priority", schema.Scalar{Kind: schema.KindInt}, 0),
			schema.Optional("include_tasks", schema.ListNode{Elem: schema.Scalar{Kind: schema.KindString}}, nil),
			schema.Optional("include_inputs", schema.ListNode{Elem: schema.Scalar{Kind: schema.KindString}}, nil),
			schema.Optional("exclude_tasks", schema.ListNode{Elem: schema.Scalar{Kind: schema.KindString}}, nil),
			schema.Optional("exclude_inputs", schema.ListNode{Elem: schema.Scalar{Kind: schema.KindString}}, nil),
		)
	}
	return schema.Obj{Fields: fields}
}

func taskSchema() schema.Node {
	return schema.Obj{Fields: []schema.Field{
		schema.Required("name", schema.Scalar{Kind: schema.KindString}),
		schema.Required("cron", schema.Scalar{Kind: schema.KindCron}),
		schema.Optional("result", schema.Any{}, nil),
		schema.Optional("static_attributes", schema.MapNode{Elem: schema.Any{}}, map[string]any{}),
		schema.Optional("max_retries", schema.Scalar{Kind: schema.KindInt}, 2),
		schema.Optional("retry_delay", schema.Scalar{Kind: schema.KindDuration}, "10s"),
		schema.Optional("modifiers", schema.Any{}, nil),
		schema.Optional("params", schema.Any{}, map[string]any{}),
		schema.Optional("repeat_for", schema.Any{}, nil),
	}}
}

// Package config implements the Config Loader: parsing,
// template-extension merging, repeat_for expansion, environment
// materialization, and final schema validation of the YAML configuration
// document.
package config

import "time"

// Document is the fully decoded, validated configuration.
type Document struct {
	Flow       Flow
	Env        map[string]string
	Inputs     []Module
	Transforms []Module
	Outputs    []Module
}

// Flow holds the `flow:` root block.
type Flow struct {
	Version  string
	Extends  []string
	Settings map[string]any
}

// Module is one input/transform/output entry.
type Module struct {
	Type       string
	Name       string
	Enabled    bool
	Connection map[string]any

	// Transform/Output only.
	Params   map[string]any
	Priority int // transform only, [-256, 256], default 0

	IncludeTasks  []string
	IncludeInputs []string
	ExcludeTasks  []string
	ExcludeInputs []string

	// Input only.
	Tasks []Task
}

// Task is a scheduled unit owned by one Input.
type Task struct {
	Name             string
	Cron             string
	Result           ResultSpec
	StaticAttributes map[string]any
	MaxRetries       int
	RetryDelay       time.Duration
	Modifiers        ModifiersSpec
	Params           map[string]any

	// RepeatFor is consumed entirely at expansion time
	// and is not part of the validated runtime Task; it is retained here
	// only for diagnostics about the expansion that produced a clone.
	RepeatFor map[string][]any
}

// ResultSpec is the optional `result` block of a Task.
type ResultSpec struct {
	Metrics    any // raw form; parsed by frame.ParseSelector
	Attributes any
}

// ModifiersSpec is the optional `modifiers` block of a Task.
type ModifiersSpec struct {
	TimeOffset  time.Duration
	TimeModulus time.Duration
	HasOffset   bool
	HasModulus  bool
}

// Package settings implements the Settings Resolver:
// command-line flags, STREAMLET_* environment variables, and
// `flow.settings` merged with command-line taking precedence over
// environment, which takes precedence over the configuration file.
package settings

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// Settings holds every recognized setting's resolved, typed value.
type Settings struct {
	ConfigPaths            []string
	LogLevel               int
	OnlyValidate           bool
	RunOnce                bool
	PrintConfig            bool
	PrintTraceback         bool
	DisableOutputs         bool
	DisableDefault         bool
	CeleryPool             string // "parallel" | "serial"
	DisableReadinessProbe  bool
	SkipDisabledValidation bool
	AllowNoneMetric        bool
	NestedAttrSeparator    string
	Timezone               string
}

// Kind identifies a setting's declared type for parse/validate purposes.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindString
)

// definition describes one recognized setting: its flag/env name and type.
type definition struct {
	name    string
	kind    Kind
	def     any
	envName string
}

var definitions = []definition{
	{"log-level", KindInt, 0, "STREAMLET_LOG_LEVEL"},
	{"only-validate", KindBool, false, "STREAMLET_ONLY_VALIDATE"},
	{"run-once", KindBool, false, "STREAMLET_RUN_ONCE"},
	{"print-config", KindBool, false, "STREAMLET_PRINT_CONFIG"},
	{"print-traceback", KindBool, false, "STREAMLET_PRINT_TRACEBACK"},
	{"disable-outputs", KindBool, false, "STREAMLET_DISABLE_OUTPUTS"},
	{"disable-default", KindBool, false, "STREAMLET_DISABLE_DEFAULT"},
	{"celery-pool", KindString, "parallel", "STREAMLET_CELERY_POOL"},
	{"disable-readiness-probe", KindBool, false, "STREAMLET_DISABLE_READINESS_PROBE"},
	{"skip-disabled-validation", KindBool, false, "STREAMLET_SKIP_DISABLED_VALIDATION"},
	{"allow-none-metric", KindBool, false, "STREAMLET_ALLOW_NONE_METRIC"},
	{"nested-attr-seperator", KindString, ".", "STREAMLET_NESTED_ATTR_SEPERATOR"},
	{"timezone", KindString, "UTC", "STREAMLET_TIMEZONE"},
}

// Resolver accumulates command-line and environment values ahead of the
// configuration file being read, so construction-gating settings (the
// config path itself) are available before step 3 of the precedence chain.
type Resolver struct {
	fs        *flag.FlagSet
	configArg *stringSliceFlag
	cliFlags  map[string]flag.Getter
	cliSet    map[string]bool
	lookupEnv func(string) (string, bool)
}

// stringSliceFlag implements flag.Value for a repeatable --config flag.
type stringSliceFlag struct{ values []string }

func (s *stringSliceFlag) String() string { return strings.Join(s.values, ",") }
func (s *stringSliceFlag) Set(v string) error {
	s.values = append(s.values, v)
	return nil
}

// NewResolver builds the flag set for every recognized setting plus the
// repeatable --config flag, then parses args (normally os.Args[1:]).
func NewResolver(args []string, lookupEnv func(string) (string, bool)) (*Resolver, error) {
	fs := flag.NewFlagSet("streamletd", flag.ContinueOnError)
	r := &Resolver{fs: fs, cliFlags: make(map[string]flag.Getter), cliSet: make(map[string]bool), lookupEnv: lookupEnv}

	r.configArg = &stringSliceFlag{}
	fs.Var(r.configArg, "config", "path to configuration YAML (repeatable for extensions)")

	for _, d := range definitions {
		switch d.kind {
		case KindBool:
			fs.Bool(d.name, d.def.(bool), "")
		case KindInt:
			fs.Int(d.name, d.def.(int), "")
		case KindString:
			fs.String(d.name, d.def.(string), "")
		}
	}

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		r.cliSet[f.Name] = true
	})
	fs.VisitAll(func(f *flag.Flag) {
		if g, ok := f.Value.(flag.Getter); ok {
			r.cliFlags[f.Name] = g
		}
	})

	return r, nil
}

// ConfigPaths returns every --config value given on the command line, in
// order (the first is the root document, later ones are extension layers
// the resolver itself does not order — config.Load owns the extends chain).
func (r *Resolver) ConfigPaths() []string {
	return r.configArg.values
}

// Resolve merges command-line (highest), environment (next), and
// flow.settings (lowest) into a fully typed Settings. Command-line values
// can never be overridden by the later sources.
func (r *Resolver) Resolve(flowSettings map[string]any) (*Settings, error) {
	out := &Settings{ConfigPaths: r.ConfigPaths()}
	for _, d := range definitions {
		val, err := r.resolveOne(d, flowSettings)
		if err != nil {
			return nil, err
		}
		if err := assign(out, d.name, val); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Resolver) resolveOne(d definition, flowSettings map[string]any) (any, error) {
	if r.cliSet[d.name] {
		return coerceFlagValue(r.cliFlags[d.name])
	}
	if raw, ok := r.lookupEnv(d.envName); ok {
		return parseTyped(d.kind, raw)
	}
	if flowSettings != nil {
		key := strings.ReplaceAll(d.name, "-", "_")
		if raw, ok := flowSettings[key]; ok {
			return coerceConfigValue(d.kind, raw)
		}
	}
	return d.def, nil
}

func coerceFlagValue(g flag.Getter) (any, error) {
	if g == nil {
		return nil, fmt.Errorf("settings: internal: no flag value registered")
	}
	return g.Get(), nil
}

func parseTyped(kind Kind, raw string) (any, error) {
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("settings: invalid bool value %q: %w", raw, err)
		}
		return b, nil
	case KindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("settings: invalid int value %q: %w", raw, err)
		}
		return n, nil
	default:
		return raw, nil
	}
}

func coerceConfigValue(kind Kind, raw any) (any, error) {
	switch kind {
	case KindBool:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("settings: expected bool, got %T", raw)
	case KindInt:
		switch v := raw.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			return int(v), nil
		default:
			return nil, fmt.Errorf("settings: expected int, got %T", raw)
		}
	default:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("settings: expected string, got %T", raw)
	}
}

func assign(s *Settings, name string, val any) error {
	switch name {
	case "log-level":
		s.LogLevel = val.(int)
	case "only-validate":
		s.OnlyValidate = val.(bool)
	case "run-once":
		s.RunOnce = val.(bool)
	case "print-config":
		s.PrintConfig = val.(bool)
	case "print-traceback":
		s.PrintTraceback = val.(bool)
	case "disable-outputs":
		s.DisableOutputs = val.(bool)
	case "disable-default":
		s.DisableDefault = val.(bool)
	case "celery-pool":
		pool := val.(string)
		if pool != "parallel" && pool != "serial" {
			return fmt.Errorf("settings: celery-pool must be %q or %q, got %q", "parallel", "serial", pool)
		}
		s.CeleryPool = pool
	case "disable-readiness-probe":
		s.DisableReadinessProbe = val.(bool)
	case "skip-disabled-validation":
		s.SkipDisabledValidation = val.(bool)
	case "allow-none-metric":
		s.AllowNoneMetric = val.(bool)
	case "nested-attr-seperator":
		s.NestedAttrSeparator = val.(string)
	case "timezone":
		s.Timezone = val.(string)
	default:
		return fmt.Errorf("settings: internal: unrecognized setting %q", name)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Biscgit/streamlet/module"
	"github.com/Biscgit/streamlet/registry"
	"github.com/Biscgit/streamlet/schema"
	"github.com/Biscgit/streamlet/streamleterr"
)

// LoadOptions configures Load.
type LoadOptions struct {
	RootPath string
	// ExtraPaths holds additional --config paths beyond the first, given
	// repeatable CLI-level extension layers the same treatment as the
	// document's own `flow.extends` entries: merged in first (lowest
	// precedence), in reverse of the order listed so that an earlier path
	// overrides a later one, before `flow.extends` and the root document are
	// overlaid on top.
	ExtraPaths      []string
	Registry        *registry.Registry
	AllowNoneMetric bool // resolved `allow_none_metric` setting
	NestedSeparator string
	// DisableDefault flips every module's synthesized `enabled` default to
	// false, so no module runs unless explicitly turned on. Tasks carry no
	// `enabled` key and run whenever their input is enabled.
	DisableDefault bool
	// SkipDisabledValidation, when set, exempts disabled modules from
	// connection/param schema validation against their module type.
	SkipDisabledValidation bool
}

// Result is everything Load produces: the validated Document plus the
// fully merged+expanded raw tree.
type Result struct {
	Document   *Document
	Normalized map[string]any
}

// Load implements the full load pipeline:
//  1. parse root + every `flow.extends` path + every opts.ExtraPaths entry
//  2. merge extensions in reverse order, root on top
//  3. (module/task name-keyed merge happens inside step 2)
//  4. expand repeat_for
//  5. materialize `env` into the process environment
//  6. strict schema validation (generic shape + per-module-type schemas)
func Load(opts LoadOptions) (*Result, error) {
	root, err := parseFile(opts.RootPath)
	if err != nil {
		return nil, streamleterr.New(streamleterr.KindConfigInvalid, opts.RootPath, err)
	}

	extPaths := stringsOf(getMap(root, "flow")["extends"])
	extDocs := make([]map[string]any, 0, len(extPaths))
	for _, p := range extPaths {
		resolved := p
		if !strings.HasPrefix(p, "/") {
			resolved = joinDir(opts.RootPath, p)
		}
		d, err := parseFile(resolved)
		if err != nil {
			return nil, streamleterr.New(streamleterr.KindConfigInvalid, "[flow][extends]", fmt.Errorf("%s: %w", p, err))
		}
		extDocs = append(extDocs, d)
	}
	for _, p := range opts.ExtraPaths {
		d, err := parseFile(p)
		if err != nil {
			return nil, streamleterr.New(streamleterr.KindConfigInvalid, "[--config]", fmt.Errorf("%s: %w", p, err))
		}
		extDocs = append(extDocs, d)
	}

	merged := mergeDocuments(root, extDocs)

	if err := expandRepeatFor(merged); err != nil {
		return nil, streamleterr.New(streamleterr.KindConfigInvalid, "[inputs]", err)
	}

	for k, v := range asMap(merged["env"]) {
		if err := os.Setenv(k, scalarToString(v)); err != nil {
			return nil, streamleterr.New(streamleterr.KindConfigInvalid, "[env]", err)
		}
	}

	cfgErrs := streamleterr.NewConfigErrors()
	normalized := schema.Validate(documentSchema(!opts.DisableDefault), merged, "", cfgErrs).(map[string]any)
	if cfgErrs.Len() > 0 {
		return nil, cfgErrs.ErrOrNil()
	}

	doc, err := decodeDocument(normalized)
	if err != nil {
		return nil, streamleterr.New(streamleterr.KindConfigInvalid, "", err)
	}

	if opts.Registry != nil {
		validateModuleTypes(doc, opts.Registry, opts.SkipDisabledValidation, cfgErrs)
	}
	validateInvariants(doc, opts.AllowNoneMetric, cfgErrs)
	if cfgErrs.Len() > 0 {
		return nil, cfgErrs.ErrOrNil()
	}

	return &Result{Document: doc, Normalized: normalized}, nil
}

// mergeDocuments merges extension documents in reverse declaration order
// (the last extends entry is the deepest base), then overlays root on top.
func mergeDocuments(root map[string]any, extDocs []map[string]any) map[string]any {
	if len(extDocs) == 0 {
		return deepCopy(root).(map[string]any)
	}
	result := deepCopy(extDocs[len(extDocs)-1]).(map[string]any)
	for i := len(extDocs) - 2; i >= 0; i-- {
		result = mergeOverlay(result, extDocs[i])
	}
	return mergeOverlay(result, root)
}

func joinDir(rootPath, rel string) string {
	idx := strings.LastIndex(rootPath, "/")
	if idx < 0 {
		return rel
	}
	return rootPath[:idx+1] + rel
}

// validateModuleTypes resolves each module's `type` against the registry
// and, when found, validates `connection` (and `params` for
// Transform/Output) against that entry's declared schemas. When
// skipDisabled is set (the `skip_disabled_validation` setting), disabled
// modules are only checked for a resolvable type; their connection/param
// shapes are not enforced.
func validateModuleTypes(doc *Document, reg *registry.Registry, skipDisabled bool, errs *streamleterr.ConfigErrors) {
	checkGroup := func(section string, mods []Module, variant module.Variant) {
		for i, m := range mods {
			path := fmt.Sprintf("[%s][%d]", section, i)
			entry, ok := reg.Get(m.Type)
			if !ok {
				suggestion := closestTypeMatch(m.Type, reg.TypesForVariant(variant))
				msg := fmt.Sprintf("unknown module type %q", m.Type)
				if suggestion != "" {
					msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
				}
				errs.Add(path+"[type]", msg)
				continue
			}
			if skipDisabled && !m.Enabled {
				continue
			}
			if entry.ConnectionSchema != nil {
				schema.Validate(entry.ConnectionSchema, m.Connection, path+"[connection]", errs)
			}
			if entry.ParamSchema != nil && variant != module.VariantInput {
				schema.Validate(entry.ParamSchema, m.Params, path+"[params]", errs)
			}
		}
	}
	checkGroup("inputs", doc.Inputs, module.VariantInput)
	checkGroup("transforms", doc.Transforms, module.VariantTransform)
	checkGroup("outputs", doc.Outputs, module.VariantOutput)
}

func closestTypeMatch(typ string, candidates []string) string {
	return schema.ClosestMatch(typ, candidates)
}

// Marshal re-encodes the normalized document as YAML for --print-config
// and for idempotence checks.
func Marshal(normalized map[string]any) (string, error) {
	b, err := yaml.Marshal(normalized)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

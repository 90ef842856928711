package config

import (
	"fmt"
	"strings"

	"github.com/Biscgit/streamlet/frame"
	"github.com/Biscgit/streamlet/streamleterr"
)

// validateInvariants checks the always-true invariants that
// span multiple modules/tasks and so can't be expressed as a single
// schema.Node constraint:
//
//   - every task name is globally unique across all inputs
//   - every module name is unique within its variant
//   - a task's metrics/attributes selectors are disjoint (when statically
//     determinable -- see note below) unless metrics is None
//   - allow_none_metric must be enabled for any task with an explicit
//     None metrics selector
func validateInvariants(doc *Document, allowNoneMetric bool, errs *streamleterr.ConfigErrors) {
	checkModuleNameUniqueness("inputs", doc.Inputs, errs)
	checkModuleNameUniqueness("transforms", doc.Transforms, errs)
	checkModuleNameUniqueness("outputs", doc.Outputs, errs)

	taskOwner := make(map[string]string) // task name -> owning input name, first occurrence
	for ii, in := range doc.Inputs {
		for ti, t := range in.Tasks {
			path := fmt.Sprintf("[inputs][%d][tasks][%d][name]", ii, ti)
			if t.Name == "" {
				errs.Add(path, "task name is required")
				continue
			}
			if owner, exists := taskOwner[t.Name]; exists {
				errs.Add(path, fmt.Sprintf("duplicate task name %q (already owned by input %q)", t.Name, owner))
			} else {
				taskOwner[t.Name] = in.Name
			}

			checkSelectorDisjointness(path, t, allowNoneMetric, errs)
		}
	}
}

func checkModuleNameUniqueness(section string, mods []Module, errs *streamleterr.ConfigErrors) {
	seen := make(map[string]int)
	for i, m := range mods {
		if m.Name == "" {
			continue
		}
		if first, exists := seen[m.Name]; exists {
			errs.Add(fmt.Sprintf("[%s][%d][name]", section, i),
				fmt.Sprintf("duplicate module name %q (first defined at %s[%d])", m.Name, section, first))
			continue
		}
		seen[m.Name] = i
	}
}

// checkSelectorDisjointness enforces the metrics/attributes disjointness invariant.
// It is fully decidable only when both selectors are pure literal key
// lists (no glob patterns); pattern-based selectors are additionally
// re-checked per-record at build time by frame.Resolve, since their
// expansion depends on the record shape the config loader never sees.
func checkSelectorDisjointness(path string, t Task, allowNoneMetric bool, errs *streamleterr.ConfigErrors) {
	metricsSel, err := frame.ParseSelector(t.Result.Metrics)
	if err != nil {
		errs.Add(path, err.Error())
		return
	}
	if metricsSel.None {
		if !allowNoneMetric {
			errs.Add(path, "metrics selector is None but allow_none_metric is not enabled")
		}
		return
	}

	attrsSel, err := frame.ParseSelector(t.Result.Attributes)
	if err != nil {
		errs.Add(path, err.Error())
		return
	}
	if !attrsSel.Explicit {
		return // complement is computed per-record; always disjoint by construction
	}

	metricLiterals := literalKeys(metricsSel.Keys)
	attrLiterals := literalKeys(attrsSel.Keys)
	overlap := make([]string, 0)
	for _, k := range metricLiterals {
		if contains(attrLiterals, k) {
			overlap = append(overlap, k)
		}
	}
	if len(overlap) > 0 {
		errs.Add(path, fmt.Sprintf("metrics and attributes selectors overlap on key(s): %s", strings.Join(overlap, ", ")))
	}
}

func literalKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !strings.ContainsAny(k, "*?[") {
			out = append(out, k)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

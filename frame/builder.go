package frame

import (
	"fmt"
	"strings"
	"time"
)

// ResultSelector is the compiled form of a Task's `result` config block.
type ResultSelector struct {
	Metrics    Selector
	Attributes Selector
	Separator  string // nested_attr_seperator, default "."
}

// Resolved holds the metric/attribute key sets computed for one record.
type Resolved struct {
	MetricKeys    []string
	AttributeKeys []string
}

// Resolve computes the metric and attribute key sets for a single flattened
// record:
//
//   - metrics absent  -> literal selector "metric"
//   - metrics None    -> no metric keys (allow_none_metric must be set by caller)
//   - attributes omitted -> complement of flattened keys minus metrics
//   - attributes given   -> its own expansion, no automatic complement;
//     a key selected by both metrics and attributes is an error
func Resolve(sel ResultSelector, flat map[string]Scalar) (Resolved, error) {
	metricsSel := sel.Metrics
	if !metricsSel.Explicit {
		metricsSel = Selector{Explicit: true, Keys: []string{"metric"}}
	}

	metricKeys, err := Expand(metricsSel, flat)
	if err != nil {
		return Resolved{}, err
	}

	var attrKeys []string
	if sel.Attributes.Explicit {
		attrKeys, err = Expand(sel.Attributes, flat)
		if err != nil {
			return Resolved{}, err
		}
		for _, ak := range attrKeys {
			for _, mk := range metricKeys {
				if ak == mk {
					return Resolved{}, fmt.Errorf("key %q is selected as both metric and attribute", ak)
				}
			}
		}
	} else {
		attrKeys = Complement(flat, metricKeys)
	}

	return Resolved{MetricKeys: metricKeys, AttributeKeys: attrKeys}, nil
}

// LeafName returns the final dotted component of a flattened key, used to
// suffix the task name when naming an emitted Metric.
func LeafName(key, sep string) string {
	idx := strings.LastIndex(key, sep)
	if idx < 0 {
		return key
	}
	return key[idx+len(sep):]
}

// Builder projects raw records into a Frame.
type Builder struct {
	Separator       string // nested_attr_seperator
	AllowNoneMetric bool
}

// NewBuilder returns a Builder with the given separator, defaulting to "."
func NewBuilder(separator string, allowNoneMetric bool) *Builder {
	if separator == "" {
		separator = "."
	}
	return &Builder{Separator: separator, AllowNoneMetric: allowNoneMetric}
}

// BuildOne projects a single record into zero or more Metrics, applying
// static attribute overrides. It does not assign the frame-level timestamp;
// callers combine the result across records and stamp the whole Frame.
func (b *Builder) BuildOne(taskName string, record map[string]any, sel ResultSelector, staticAttrs map[string]any) ([]Metric, error) {
	if sel.Metrics.None && !b.AllowNoneMetric {
		return nil, fmt.Errorf("task %q: metrics selector is None but allow_none_metric is not enabled", taskName)
	}

	flat := Flatten(record, b.Separator)
	resolved, err := Resolve(sel, flat)
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", taskName, err)
	}

	baseAttrs := make(map[string]Scalar, len(resolved.AttributeKeys)+len(staticAttrs))
	for _, k := range resolved.AttributeKeys {
		baseAttrs[LeafName(k, b.Separator)] = flat[k]
	}
	for k, v := range staticAttrs {
		baseAttrs[k] = v // static_attributes wins on conflict
	}

	if sel.Metrics.None {
		// None selector: emit a single attribute-only metric with no value.
		m := Metric{Name: taskName, Value: nil, Attributes: cloneAttrs(baseAttrs)}
		return []Metric{m}, nil
	}

	metrics := make([]Metric, 0, len(resolved.MetricKeys))
	for _, mk := range resolved.MetricKeys {
		val, err := CheckScalar(flat[mk])
		if err != nil {
			return nil, fmt.Errorf("task %q: metric %q: %w", taskName, mk, err)
		}
		if val == nil && !b.AllowNoneMetric {
			return nil, fmt.Errorf("task %q: metric %q has no value but allow_none_metric is not enabled", taskName, mk)
		}
		attrs := cloneAttrs(baseAttrs)
		attrs["metric_field_name"] = mk
		for k, v := range staticAttrs {
			attrs[k] = v
		}
		metrics = append(metrics, Metric{
			Name:       taskName + "_" + LeafName(mk, b.Separator),
			Value:      val,
			Attributes: attrs,
		})
	}
	return metrics, nil
}

func cloneAttrs(src map[string]Scalar) map[string]Scalar {
	out := make(map[string]Scalar, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Build projects one or more raw records (a single map, or a slice of maps)
// into a Frame stamped with ts, concatenating metrics in record order.
func (b *Builder) Build(taskName string, records any, sel ResultSelector, staticAttrs map[string]any, ts time.Time) (*Frame, error) {
	var recordList []map[string]any
	switch v := records.(type) {
	case map[string]any:
		recordList = []map[string]any{v}
	case []map[string]any:
		recordList = v
	case []any:
		recordList = make([]map[string]any, 0, len(v))
		for _, item := range v {
			rm, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("task %q: record list entry is not a map (%T)", taskName, item)
			}
			recordList = append(recordList, rm)
		}
	default:
		return nil, fmt.Errorf("task %q: unsupported record type %T", taskName, records)
	}

	frame := &Frame{TaskName: taskName, Timestamp: ts}
	for _, rec := range recordList {
		metrics, err := b.BuildOne(taskName, rec, sel, staticAttrs)
		if err != nil {
			return nil, err
		}
		frame.Metrics = append(frame.Metrics, metrics...)
	}
	return frame, nil
}

// CheckScalar validates that v is one of the permitted scalar kinds:
// int, float, bool, complex, string, or nil.
func CheckScalar(v any) (Scalar, error) {
	switch v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		complex64, complex128:
		return v, nil
	default:
		return nil, fmt.Errorf("value of type %T is not a permitted scalar kind", v)
	}
}

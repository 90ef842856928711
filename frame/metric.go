// Package frame implements the Metric/MetricFrame data model and the
// frame builder: projecting raw input records into a
// structured, timestamped batch of metrics using field-selection rules.
package frame

import "time"

// Scalar is the set of permitted metric value / attribute kinds: int, float, bool, complex, or string. Records decoded from YAML/JSON
// sources naturally collapse to these via the any/interface{} representation;
// Value and Attributes below are typed as any but CheckScalar enforces the
// invariant at projection time.
type Scalar = any

// Metric is a single named value with a flat attribute map.
// Value may be nil only when allow_none_metric is enabled: for the
// explicit None selector, or for a selected record field that is null.
type Metric struct {
	Name       string
	Value      Scalar
	Attributes map[string]Scalar
}

// Frame is an ordered, timestamped batch of Metrics sharing a common
// task-derived name prefix. It is immutable after leaving the
// transform stage; outputs must treat it as read-only.
type Frame struct {
	TaskName  string
	Timestamp time.Time
	Metrics   []Metric
}

// Len returns the number of metrics in the frame. Transforms must never
// change this value: the frame is fixed-length after
// the build step.
func (f *Frame) Len() int { return len(f.Metrics) }

// Package module defines the Module capability interfaces: a tagged-variant Module = Input | Transform |
// Output, each holding the capability set the spec assigns it, plus the
// shared Lifecycle capability used by the connect/shutdown hooks.
package module

import (
	"context"

	"github.com/Biscgit/streamlet/frame"
)

// Variant identifies which of the three module kinds an entry is.
type Variant string

const (
	VariantInput     Variant = "input"
	VariantTransform Variant = "transform"
	VariantOutput    Variant = "output"
)

// Module is the capability every variant shares: a name used for
// uniqueness checks and routing-filter matching.
type Module interface {
	Name() string
}

// Input produces records on a cron schedule (glossary). Run receives the
// task's resolved parameters and returns a single record (map[string]any)
// or a record list ([]map[string]any).
type Input interface {
	Module
	Run(ctx context.Context, params map[string]any) (any, error)
}

// Transform mutates Metrics within a Frame in place. It must not add or
// remove Metrics.
type Transform interface {
	Module
	Apply(ctx context.Context, f *frame.Frame) error
}

// Output emits a Frame to an external sink. It must treat the Frame as
// read-only.
type Output interface {
	Module
	Emit(ctx context.Context, f *frame.Frame) error
}

// Lifecycle is the optional capability a module implements to participate
// in startup/shutdown hooks. Modules that don't need it can
// embed NoopLifecycle to satisfy the interface with no-op defaults.
type Lifecycle interface {
	OnConnect(ctx context.Context) error
	OnPreShutdown(ctx context.Context) error
	OnShutdown(ctx context.Context) error
}

// NoopLifecycle provides default no-op Lifecycle hooks. Modules embed this
// and override only the hooks they need.
type NoopLifecycle struct{}

func (NoopLifecycle) OnConnect(context.Context) error     { return nil }
func (NoopLifecycle) OnPreShutdown(context.Context) error { return nil }
func (NoopLifecycle) OnShutdown(context.Context) error    { return nil }

// AsLifecycle returns m's Lifecycle capability, or a NoopLifecycle if the
// module did not implement one.
func AsLifecycle(m Module) Lifecycle {
	if lc, ok := m.(Lifecycle); ok {
		return lc
	}
	return NoopLifecycle{}
}

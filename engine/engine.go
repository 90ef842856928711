// Package engine ties a validated configuration document to constructed
// module instances and drives their lifecycle and scheduled execution: it
// is the glue between config.Load's output, the registry's constructors,
// the chain compiler, the lifecycle manager, and the scheduler dispatcher.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Biscgit/streamlet/chain"
	"github.com/Biscgit/streamlet/config"
	"github.com/Biscgit/streamlet/frame"
	"github.com/Biscgit/streamlet/lifecycle"
	"github.com/Biscgit/streamlet/module"
	"github.com/Biscgit/streamlet/registry"
	"github.com/Biscgit/streamlet/scheduler"
	"github.com/Biscgit/streamlet/settings"
)

// Options configures a Flow build.
type Options struct {
	Document *config.Document
	Registry *registry.Registry
	Settings *settings.Settings
	Logger   *slog.Logger
}

// Flow is one running instance of a validated configuration: every
// constructed module, the lifecycle manager over all of them, and the
// scheduler dispatcher driving their tasks.
type Flow struct {
	logger     *slog.Logger
	lifecycle  *lifecycle.Manager
	dispatcher *scheduler.Dispatcher
	ready      atomic.Bool
}

// Build constructs every module named in opts.Document via opts.Registry,
// compiles each input's transform/output chains, and registers one
// TaskRunner per task with a scheduler.Dispatcher. It does not connect or
// start anything; call Connect then Start on the returned Flow.
func Build(opts Options) (*Flow, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	inputs, err := constructVariant(opts.Registry, opts.Document.Inputs, module.VariantInput, logger)
	if err != nil {
		return nil, err
	}
	transforms, err := constructVariant(opts.Registry, opts.Document.Transforms, module.VariantTransform, logger)
	if err != nil {
		return nil, err
	}
	outputs, err := constructVariant(opts.Registry, opts.Document.Outputs, module.VariantOutput, logger)
	if err != nil {
		return nil, err
	}

	chains, err := chain.CompileAll(opts.Document)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(opts.Settings.Timezone)
	if err != nil {
		return nil, fmt.Errorf("engine: invalid timezone %q: %w", opts.Settings.Timezone, err)
	}

	builder := frame.NewBuilder(opts.Settings.NestedAttrSeparator, opts.Settings.AllowNoneMetric)
	policy := scheduler.PolicyParallel
	if opts.Settings.CeleryPool == "serial" {
		policy = scheduler.PolicySerial
	}
	dispatcher := scheduler.New(scheduler.Options{
		Policy:         policy,
		RunOnce:        opts.Settings.RunOnce,
		DisableOutputs: opts.Settings.DisableOutputs,
		Timezone:       loc,
	}, builder, logger)

	for _, c := range chains {
		in, ok := inputs[c.InputName]
		if !ok {
			return nil, fmt.Errorf("engine: chain refers to unknown input %q", c.InputName)
		}
		tr, err := buildTaskRunner(c, in, transforms, outputs)
		if err != nil {
			return nil, err
		}
		if err := dispatcher.Register(tr); err != nil {
			return nil, fmt.Errorf("engine: task %q: %w", c.Task.Name, err)
		}
	}

	allModules := make([]module.Module, 0, len(inputs)+len(transforms)+len(outputs))
	allModules = append(allModules, orderedValues(opts.Document.Inputs, inputs)...)
	allModules = append(allModules, orderedValues(opts.Document.Transforms, transforms)...)
	allModules = append(allModules, orderedValues(opts.Document.Outputs, outputs)...)

	return &Flow{
		logger:     logger,
		lifecycle:  lifecycle.New(logger, allModules),
		dispatcher: dispatcher,
	}, nil
}

func buildTaskRunner(c *chain.TaskChain, in module.Module, transforms, outputs map[string]module.Module) (scheduler.TaskRunner, error) {
	input, ok := in.(module.Input)
	if !ok {
		return scheduler.TaskRunner{}, fmt.Errorf("engine: module %q is not an Input", c.InputName)
	}

	tr := scheduler.TaskRunner{Chain: c, Input: input}

	for _, m := range c.Transforms {
		inst, ok := transforms[m.Name]
		if !ok {
			return scheduler.TaskRunner{}, fmt.Errorf("engine: transform %q not constructed", m.Name)
		}
		tx, ok := inst.(module.Transform)
		if !ok {
			return scheduler.TaskRunner{}, fmt.Errorf("engine: module %q is not a Transform", m.Name)
		}
		tr.Transforms = append(tr.Transforms, tx)
	}
	for _, m := range c.Outputs {
		inst, ok := outputs[m.Name]
		if !ok {
			return scheduler.TaskRunner{}, fmt.Errorf("engine: output %q not constructed", m.Name)
		}
		out, ok := inst.(module.Output)
		if !ok {
			return scheduler.TaskRunner{}, fmt.Errorf("engine: module %q is not an Output", m.Name)
		}
		tr.Outputs = append(tr.Outputs, out)
	}

	metricsSel, err := frame.ParseSelector(c.Task.Result.Metrics)
	if err != nil {
		return scheduler.TaskRunner{}, fmt.Errorf("engine: task %q: result.metrics: %w", c.Task.Name, err)
	}
	attrSel, err := frame.ParseSelector(c.Task.Result.Attributes)
	if err != nil {
		return scheduler.TaskRunner{}, fmt.Errorf("engine: task %q: result.attributes: %w", c.Task.Name, err)
	}
	tr.Result = frame.ResultSelector{Metrics: metricsSel, Attributes: attrSel}

	if c.Task.Modifiers.HasOffset {
		tr.Modifiers.TimeOffset = c.Task.Modifiers.TimeOffset
	}
	if c.Task.Modifiers.HasModulus {
		tr.Modifiers.TimeModulus = c.Task.Modifiers.TimeModulus
	}

	return tr, nil
}

// constructVariant builds one module.Module per config.Module entry via
// the registry, merging `params` into the `connection` map for
// Transform/Output variants so a single two-argument Constructor can see
// both: task-level parameters for Inputs are resolved later, at Run time,
// from the task itself, so Inputs never need this merge.
func constructVariant(reg *registry.Registry, mods []config.Module, variant module.Variant, logger *slog.Logger) (map[string]module.Module, error) {
	out := make(map[string]module.Module, len(mods))
	for _, m := range mods {
		if !m.Enabled {
			continue
		}
		entry, ok := reg.Get(m.Type)
		if !ok {
			return nil, fmt.Errorf("engine: unknown module type %q for %q", m.Type, m.Name)
		}
		if entry.Variant != variant {
			return nil, fmt.Errorf("engine: module %q is registered as %s, not %s", m.Name, entry.Variant, variant)
		}

		connection := m.Connection
		if variant != module.VariantInput && len(m.Params) > 0 {
			merged := make(map[string]any, len(connection)+len(m.Params))
			for k, v := range connection {
				merged[k] = v
			}
			for k, v := range m.Params {
				merged[k] = v
			}
			connection = merged
		}

		inst, err := entry.Constructor(m.Name, connection)
		if err != nil {
			return nil, fmt.Errorf("engine: constructing %q (%s): %w", m.Name, m.Type, err)
		}
		out[m.Name] = inst
	}
	return out, nil
}

func orderedValues(mods []config.Module, built map[string]module.Module) []module.Module {
	out := make([]module.Module, 0, len(mods))
	for _, m := range mods {
		if inst, ok := built[m.Name]; ok {
			out = append(out, inst)
		}
	}
	return out
}

// Connect runs every constructed module's OnConnect hook in registration
// order (inputs, then transforms, then outputs), aborting on the first
// failure, then flips Ready() true.
func (f *Flow) Connect(ctx context.Context) error {
	if err := f.lifecycle.Connect(ctx); err != nil {
		return err
	}
	f.ready.Store(true)
	return nil
}

// Start begins cron-driven dispatch (a no-op in run-once mode, where
// Build's dispatcher registration already launched the one-shot fires).
func (f *Flow) Start(ctx context.Context) error {
	return f.dispatcher.Start(ctx)
}

// Quiesced reports when every run-once fire has completed.
func (f *Flow) Quiesced() <-chan struct{} {
	return f.dispatcher.Quiesced()
}

// Ready reports whether Connect has completed successfully, for a
// readiness probe endpoint to expose. It does not consult
// disable_readiness_probe; the caller decides whether to serve this at all.
func (f *Flow) Ready() bool {
	return f.ready.Load()
}

// Stop flips Ready() false, then runs PreShutdown/Shutdown across every
// module in the lifecycle manager's order, waiting up to grace for
// in-flight fires to finish first.
func (f *Flow) Stop(ctx context.Context, grace time.Duration) {
	f.ready.Store(false)
	f.dispatcher.Stop(ctx, grace)
	f.lifecycle.Shutdown(ctx)
}

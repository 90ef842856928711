// Package scheduler implements the Scheduler/Dispatcher:
// one periodic trigger per task of an enabled input, translating each task's cron
// expression into fire instants via robfig/cron/v3, and executing the
// four-step per-fire boundary (invoke input, build frame, walk transform
// chain, walk output chain).
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Biscgit/streamlet/chain"
	"github.com/Biscgit/streamlet/frame"
	"github.com/Biscgit/streamlet/module"
	"github.com/Biscgit/streamlet/streamleterr"
)

// Policy selects how concurrently fires are allowed to run.
type Policy string

const (
	PolicyParallel Policy = "parallel"
	PolicySerial   Policy = "serial"
)

// TaskRunner binds one compiled TaskChain to its constructed module
// instances and precomputed per-task projection settings.
type TaskRunner struct {
	Chain      *chain.TaskChain
	Input      module.Input
	Transforms []module.Transform
	Outputs    []module.Output
	Result     frame.ResultSelector
	Modifiers  frame.Modifiers
}

// Options configures dispatcher-wide behavior.
type Options struct {
	Policy         Policy
	RunOnce        bool
	DisableOutputs bool
	Timezone       *time.Location
}

// Dispatcher registers and runs TaskRunners on their cron schedules.
type Dispatcher struct {
	opts    Options
	logger  *slog.Logger
	builder *frame.Builder
	cron    *cron.Cron
	serial  sync.Mutex

	wg      sync.WaitGroup // tracks in-flight fires for graceful shutdown
	runOnce sync.WaitGroup // tracks the one-shot fires when RunOnce is set
}

// New returns a Dispatcher. builder projects raw input records into
// Frames; logger receives one structured line per
// non-fatal failure.
func New(opts Options, builder *frame.Builder, logger *slog.Logger) *Dispatcher {
	if opts.Timezone == nil {
		opts.Timezone = time.UTC
	}
	return &Dispatcher{
		opts:    opts,
		logger:  logger,
		builder: builder,
		cron:    cron.New(cron.WithLocation(opts.Timezone), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow))),
	}
}

// Register schedules tr per opts.RunOnce: either a single immediate fire
// (quiescing afterward) or a recurring cron trigger.
func (d *Dispatcher) Register(tr TaskRunner) error {
	if d.opts.RunOnce {
		d.runOnce.Add(1)
		go func() {
			defer d.runOnce.Done()
			d.fire(context.Background(), tr)
		}()
		return nil
	}

	_, err := d.cron.AddFunc(tr.Chain.Task.Cron, func() {
		d.wg.Add(1)
		defer d.wg.Done()
		d.fire(context.Background(), tr)
	})
	return err
}

// Start begins cron-driven dispatch. In RunOnce mode there is nothing to
// start: fires were already launched by Register.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.opts.RunOnce {
		return nil
	}
	d.cron.Start()
	return nil
}

// Stop halts new fires and waits up to grace for in-flight fires to
// finish. In RunOnce + parallel mode it simply waits for the one-shot
// fires to quiesce.
func (d *Dispatcher) Stop(ctx context.Context, grace time.Duration) {
	if d.opts.RunOnce {
		waitWithTimeout(&d.runOnce, grace)
		return
	}
	stopCtx := d.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(grace):
	}
	waitWithTimeout(&d.wg, grace)
}

// Quiesced reports whether every RunOnce fire has completed, used by the
// caller to decide whether to auto-exit.
func (d *Dispatcher) Quiesced() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		d.runOnce.Wait()
		close(done)
	}()
	return done
}

func waitWithTimeout(wg *sync.WaitGroup, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

// fire runs the four-step per-fire boundary for one TaskRunner invocation.
// The serial policy holds a flow-wide mutex for the whole boundary; the
// parallel policy (default) lets fires overlap freely.
func (d *Dispatcher) fire(ctx context.Context, tr TaskRunner) {
	if d.opts.Policy == PolicySerial {
		d.serial.Lock()
		defer d.serial.Unlock()
	}

	taskName := tr.Chain.Task.Name
	inputName := tr.Chain.InputName

	record, err := d.invokeWithRetry(ctx, tr)
	if err != nil {
		d.logFailure(streamleterr.KindInputFailed, taskName, inputName, tr.Input.Name(), err)
		return
	}

	ts := frame.ApplyModifiers(time.Now().In(d.opts.Timezone), tr.Modifiers)
	f, err := d.builder.Build(taskName, record, tr.Result, tr.Chain.Task.StaticAttributes, ts)
	if err != nil {
		d.logFailure(streamleterr.KindFrameBuildFailed, taskName, inputName, tr.Input.Name(), err)
		return
	}

	if !d.walkTransforms(ctx, tr, f) {
		return
	}

	if d.opts.DisableOutputs {
		return
	}
	d.walkOutputs(ctx, tr, f)
}

// invokeWithRetry implements the retry policy on the input step only:
// retry up to max_retries with a fixed retry_delay between attempts.
func (d *Dispatcher) invokeWithRetry(ctx context.Context, tr TaskRunner) (any, error) {
	var lastErr error
	attempts := tr.Chain.Task.MaxRetries + 1
	for i := 0; i < attempts; i++ {
		record, err := tr.Input.Run(ctx, tr.Chain.Task.Params)
		if err == nil {
			return record, nil
		}
		lastErr = err
		if i < attempts-1 {
			select {
			case <-time.After(tr.Chain.Task.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// walkTransforms applies each transform in compiled order. A transform
// error is logged and the walk continues to the next transform, unless
// the error was marked Terminal, in which case the whole chain (and the
// output chain) is skipped.
func (d *Dispatcher) walkTransforms(ctx context.Context, tr TaskRunner, f *frame.Frame) bool {
	for _, t := range tr.Transforms {
		if err := t.Apply(ctx, f); err != nil {
			d.logFailure(streamleterr.KindTransformFailed, tr.Chain.Task.Name, tr.Chain.InputName, t.Name(), err)
			if streamleterr.IsTerminal(err) {
				return false
			}
		}
	}
	return true
}

// walkOutputs emits f to every output in declaration order. Output
// failures are logged and never stop the remaining outputs.
func (d *Dispatcher) walkOutputs(ctx context.Context, tr TaskRunner, f *frame.Frame) {
	for _, o := range tr.Outputs {
		if err := o.Emit(ctx, f); err != nil {
			d.logFailure(streamleterr.KindOutputFailed, tr.Chain.Task.Name, tr.Chain.InputName, o.Name(), err)
		}
	}
}

func (d *Dispatcher) logFailure(kind streamleterr.Kind, taskName, inputName, moduleName string, err error) {
	if d.logger == nil {
		return
	}
	d.logger.Error("fire failed",
		"kind", kind,
		"task", taskName,
		"input", inputName,
		"module", moduleName,
		"error", err)
}

// Package streamleterr defines the error kinds used across the flow engine.
//
// Every kind tracks which task and module it belongs to, and the
// configuration or record path that produced it, so log lines and
// --only-validate output can always answer "what, where, why" without the
// caller needing to inspect a generic error string.
package streamleterr

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Kind classifies a streamlet error by kind.
type Kind string

const (
	KindConfigInvalid      Kind = "ConfigInvalid"
	KindStartupHookFailed  Kind = "StartupHookFailed"
	KindInputFailed        Kind = "InputFailed"
	KindFrameBuildFailed   Kind = "FrameBuildFailed"
	KindTransformFailed    Kind = "TransformFailed"
	KindOutputFailed       Kind = "OutputFailed"
	KindShutdownHookFailed Kind = "ShutdownHookFailed"
)

// Error is the common shape for all streamlet error kinds.
type Error struct {
	Kind       Kind
	TaskName   string
	ModuleName string
	ModuleType string
	Path       string
	Err        error
}

func (e *Error) Error() string {
	s := string(e.Kind)
	if e.TaskName != "" {
		s += fmt.Sprintf(" task=%s", e.TaskName)
	}
	if e.ModuleName != "" || e.ModuleType != "" {
		s += fmt.Sprintf(" module=%s(%s)", e.ModuleName, e.ModuleType)
	}
	if e.Path != "" {
		s += fmt.Sprintf(" path=%s", e.Path)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether this error kind must abort the process:
// only ConfigInvalid and StartupHookFailed are fatal; all others are
// isolated to a single fire.
func (e *Error) Fatal() bool {
	return e.Kind == KindConfigInvalid || e.Kind == KindStartupHookFailed
}

func New(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

func (e *Error) WithTask(name string) *Error {
	e.TaskName = name
	return e
}

func (e *Error) WithModule(name, typ string) *Error {
	e.ModuleName = name
	e.ModuleType = typ
	return e
}

// terminalError wraps a transform error that must abort its chain rather
// than let subsequent transforms run.
type terminalError struct{ err error }

func (t *terminalError) Error() string { return t.err.Error() }
func (t *terminalError) Unwrap() error { return t.err }

// Terminal marks err so a transform chain walker aborts the rest of the
// chain and skips the output chain, instead of logging and continuing to
// the next transform.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err (or anything it wraps) was marked
// Terminal.
func IsTerminal(err error) bool {
	var t *terminalError
	return errors.As(err, &t)
}

// ConfigErrors aggregates one or more ConfigInvalid errors using
// hashicorp/go-multierror, matching a ValidationErrors-style
// accumulation pattern but with typed *Error members instead of a bare
// string-joining collector.
type ConfigErrors struct {
	merr *multierror.Error
}

// NewConfigErrors returns an empty aggregator.
func NewConfigErrors() *ConfigErrors {
	return &ConfigErrors{merr: &multierror.Error{
		ErrorFormat: func(es []error) string {
			if len(es) == 1 {
				return fmt.Sprintf("configuration invalid: %s", es[0])
			}
			points := make([]string, len(es))
			for i, e := range es {
				points[i] = fmt.Sprintf("  * %s", e)
			}
			return fmt.Sprintf("configuration invalid, %d error(s):\n%s", len(es), joinLines(points))
		},
	}}
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

// Add appends a ConfigInvalid error for the given path.
func (c *ConfigErrors) Add(path, msg string) {
	c.merr = multierror.Append(c.merr, &Error{Kind: KindConfigInvalid, Path: path, Err: fmt.Errorf("%s", msg)})
}

// AddSuggestion appends a ConfigInvalid error that includes a "did you
// mean" hint and an example value.
func (c *ConfigErrors) AddSuggestion(path, msg, suggestion string, example any) {
	full := msg
	if suggestion != "" {
		full += fmt.Sprintf(" (did you mean %q?)", suggestion)
	}
	if example != nil {
		full += fmt.Sprintf(" example: %v", example)
	}
	c.Add(path, full)
}

// Len reports the number of accumulated errors.
func (c *ConfigErrors) Len() int {
	if c.merr == nil {
		return 0
	}
	return len(c.merr.Errors)
}

// ErrOrNil returns nil if no errors were accumulated, else the aggregate.
func (c *ConfigErrors) ErrOrNil() error {
	if c.Len() == 0 {
		return nil
	}
	return c.merr.ErrorOrNil()
}

// Package chain implements the Chain Compiler: computing,
// per task, the ordered transform and output chain from each module's
// routing filters and (for transforms) priority.
package chain

import (
	"fmt"
	"strings"

	"github.com/Biscgit/streamlet/config"
	"github.com/Biscgit/streamlet/frame"
)

// TaskChain is the compiled, immutable (input, task, transforms, outputs)
// tuple.
type TaskChain struct {
	InputName  string
	Task       config.Task
	Transforms []config.Module // ordered: descending priority, ties by declaration order
	Outputs    []config.Module // ordered: declaration order
}

// Compile builds the TaskChain for one task (identified by its owning
// input's name) against the full set of configured transforms/outputs.
func Compile(inputName string, task config.Task, transforms, outputs []config.Module) (*TaskChain, error) {
	txs, err := compileTransformChain(transforms, inputName, task.Name)
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", task.Name, err)
	}
	outs, err := compileOutputChain(outputs, inputName, task.Name)
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", task.Name, err)
	}
	return &TaskChain{InputName: inputName, Task: task, Transforms: txs, Outputs: outs}, nil
}

// CompileAll builds a TaskChain for every task owned by an enabled input.
// Tasks have no enabled flag of their own, so each runs whenever its input
// is enabled.
func CompileAll(doc *config.Document) ([]*TaskChain, error) {
	var chains []*TaskChain
	for _, in := range doc.Inputs {
		if !in.Enabled {
			continue
		}
		for _, t := range in.Tasks {
			c, err := Compile(in.Name, t, doc.Transforms, doc.Outputs)
			if err != nil {
				return nil, err
			}
			chains = append(chains, c)
		}
	}
	return chains, nil
}

func compileTransformChain(transforms []config.Module, inputName, taskName string) ([]config.Module, error) {
	var admitted []config.Module
	for _, m := range transforms {
		if !m.Enabled {
			continue
		}
		ok, err := admits(m, inputName, taskName)
		if err != nil {
			return nil, fmt.Errorf("transform %q: %w", m.Name, err)
		}
		if ok {
			admitted = append(admitted, m)
		}
	}
	stableSortByPriorityDesc(admitted)
	return admitted, nil
}

func compileOutputChain(outputs []config.Module, inputName, taskName string) ([]config.Module, error) {
	var admitted []config.Module
	for _, m := range outputs {
		if !m.Enabled {
			continue
		}
		ok, err := admits(m, inputName, taskName)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", m.Name, err)
		}
		if ok {
			admitted = append(admitted, m)
		}
	}
	// Declaration order preserved; outputs carry no priority.
	return admitted, nil
}

// admits implements the filter law: include-lists admit only
// matches, exclude-lists admit all non-matches, filters of different kinds
// combine with AND, and a missing filter is permissive.
func admits(m config.Module, inputName, taskName string) (bool, error) {
	if len(m.IncludeTasks) > 0 && len(m.ExcludeTasks) > 0 {
		return false, fmt.Errorf("include_tasks and exclude_tasks are mutually exclusive")
	}
	if len(m.IncludeInputs) > 0 && len(m.ExcludeInputs) > 0 {
		return false, fmt.Errorf("include_inputs and exclude_inputs are mutually exclusive")
	}

	taskOK, err := admitsOne(taskName, m.IncludeTasks, m.ExcludeTasks)
	if err != nil {
		return false, err
	}
	inputOK, err := admitsOne(inputName, m.IncludeInputs, m.ExcludeInputs)
	if err != nil {
		return false, err
	}
	return taskOK && inputOK, nil
}

func admitsOne(name string, include, exclude []string) (bool, error) {
	if len(include) > 0 {
		return frame.MatchesAny(name, include)
	}
	if len(exclude) > 0 {
		matched, err := frame.MatchesAny(name, exclude)
		if err != nil {
			return false, err
		}
		return !matched, nil
	}
	return true, nil
}

// stableSortByPriorityDesc implements the chain order law:
// stable sort by descending priority; ties keep declaration order;
// negative priorities sort last (a natural consequence of descending sort).
func stableSortByPriorityDesc(mods []config.Module) {
	// insertion sort is stable and the chain sizes here are small
	// (module counts, not record counts); avoids importing sort for a
	// one-line comparator while keeping the same stability guarantee.
	for i := 1; i < len(mods); i++ {
		j := i
		for j > 0 && mods[j-1].Priority < mods[j].Priority {
			mods[j-1], mods[j] = mods[j], mods[j-1]
			j--
		}
	}
}

// String renders the compiled chain as a one-line-per-task summary, the
// form --only-validate prints for every task so a human can confirm the
// routing filters and priorities resolved the way they expected.
func (c *TaskChain) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s.%s:", c.InputName, c.Task.Name)
	if len(c.Transforms) == 0 {
		b.WriteString(" (no transforms)")
	} else {
		b.WriteString(" transforms=[")
		b.WriteString(moduleNames(c.Transforms))
		b.WriteString("]")
	}
	if len(c.Outputs) == 0 {
		b.WriteString(" (no outputs)")
	} else {
		b.WriteString(" outputs=[")
		b.WriteString(moduleNames(c.Outputs))
		b.WriteString("]")
	}
	return b.String()
}

func moduleNames(mods []config.Module) string {
	names := make([]string, len(mods))
	for i, m := range mods {
		names[i] = m.Name
	}
	return strings.Join(names, ", ")
}

// FormatAll renders every chain's String on its own line, in the order
// CompileAll produced them, for --only-validate output.
func FormatAll(chains []*TaskChain) string {
	lines := make([]string, len(chains))
	for i, c := range chains {
		lines[i] = c.String()
	}
	return strings.Join(lines, "\n")
}

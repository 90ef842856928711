package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Biscgit/streamlet/config"
)

func mod(name string, priority int) config.Module {
	return config.Module{Name: name, Type: "x", Enabled: true, Priority: priority}
}

// TestChainOrderLaw proves the chain order law (descending priority, ties
// by declaration order, negative priorities sort last).
func TestChainOrderLaw(t *testing.T) {
	transforms := []config.Module{
		mod("low", -5),
		mod("mid_a", 0),
		mod("mid_b", 0),
		mod("high", 10),
	}
	out, err := compileTransformChain(transforms, "in1", "t1")
	require.NoError(t, err)

	names := make([]string, len(out))
	for i, m := range out {
		names[i] = m.Name
	}
	assert.Equal(t, []string{"high", "mid_a", "mid_b", "low"}, names)
}

func TestChainOrderLaw_DisabledDropped(t *testing.T) {
	transforms := []config.Module{
		mod("a", 0),
		{Name: "b", Type: "x", Enabled: false, Priority: 5},
	}
	out, err := compileTransformChain(transforms, "in1", "t1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].Name)
}

// TestFilterLaw_IncludeTasks proves include-lists admit only matches.
func TestFilterLaw_IncludeTasks(t *testing.T) {
	m := mod("only_a", 0)
	m.IncludeTasks = []string{"a*"}

	ok, err := admits(m, "in1", "alpha")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = admits(m, "in1", "beta")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestFilterLaw_ExcludeTasks proves exclude-lists admit all non-matches.
func TestFilterLaw_ExcludeTasks(t *testing.T) {
	m := mod("not_b", 0)
	m.ExcludeTasks = []string{"beta"}

	ok, err := admits(m, "in1", "alpha")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = admits(m, "in1", "beta")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFilterLaw_MutuallyExclusive(t *testing.T) {
	m := mod("bad", 0)
	m.IncludeTasks = []string{"a"}
	m.ExcludeTasks = []string{"b"}

	_, err := admits(m, "in1", "a")
	require.Error(t, err)
}

// TestFilterLaw_AndAcrossKinds proves task and input filters combine with AND.
func TestFilterLaw_AndAcrossKinds(t *testing.T) {
	m := mod("combo", 0)
	m.IncludeTasks = []string{"alpha"}
	m.IncludeInputs = []string{"in1"}

	ok, err := admits(m, "in1", "alpha")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = admits(m, "in2", "alpha")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFilterLaw_MissingFilterIsPermissive(t *testing.T) {
	m := mod("open", 0)
	ok, err := admits(m, "anything", "whatever")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompileOutputChain_DeclarationOrderPreserved(t *testing.T) {
	outputs := []config.Module{mod("o1", 9), mod("o2", 1)}
	out, err := compileOutputChain(outputs, "in1", "t1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "o1", out[0].Name)
	assert.Equal(t, "o2", out[1].Name)
}

func TestCompile_FullChain(t *testing.T) {
	task := config.Task{Name: "t1"}
	transforms := []config.Module{mod("tx_low", 0), mod("tx_high", 5)}
	outputs := []config.Module{mod("out1", 0)}

	c, err := Compile("in1", task, transforms, outputs)
	require.NoError(t, err)
	require.Len(t, c.Transforms, 2)
	assert.Equal(t, "tx_high", c.Transforms[0].Name)
	require.Len(t, c.Outputs, 1)
	assert.Equal(t, "out1", c.Outputs[0].Name)
}

func TestCompileAll_SkipsDisabledInputs(t *testing.T) {
	doc := &config.Document{
		Inputs: []config.Module{
			{Name: "in1", Enabled: true, Tasks: []config.Task{{Name: "t1"}}},
			{Name: "in2", Enabled: false, Tasks: []config.Task{{Name: "t2"}}},
		},
	}
	chains, err := CompileAll(doc)
	require.NoError(t, err)
	require.Len(t, chains, 1)
	assert.Equal(t, "in1", chains[0].InputName)
}

package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(map[string]string) func(string) (string, bool) {
	return func(string) (string, bool) { return "", false }
}

func envLookup(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestResolve_DefaultsOnly(t *testing.T) {
	r, err := NewResolver(nil, noEnv(nil))
	require.NoError(t, err)
	s, err := r.Resolve(nil)
	require.NoError(t, err)
	assert.False(t, s.RunOnce)
	assert.Equal(t, "parallel", s.CeleryPool)
	assert.Equal(t, ".", s.NestedAttrSeparator)
	assert.Equal(t, "UTC", s.Timezone)
}

func TestResolve_FlowSettingsAppliedWhenNoCLIOrEnv(t *testing.T) {
	r, err := NewResolver(nil, noEnv(nil))
	require.NoError(t, err)
	s, err := r.Resolve(map[string]any{"run_once": true, "celery_pool": "serial"})
	require.NoError(t, err)
	assert.True(t, s.RunOnce)
	assert.Equal(t, "serial", s.CeleryPool)
}

func TestResolve_EnvOverridesFlowSettings(t *testing.T) {
	r, err := NewResolver(nil, envLookup(map[string]string{"STREAMLET_RUN_ONCE": "true"}))
	require.NoError(t, err)
	s, err := r.Resolve(map[string]any{"run_once": false})
	require.NoError(t, err)
	assert.True(t, s.RunOnce)
}

// TestResolve_CLIWinsOverEnvAndFlowSettings proves the precedence rule:
// precedence: command-line > environment > flow.settings, and the
// command-line value cannot be overwritten by later phases.
func TestResolve_CLIWinsOverEnvAndFlowSettings(t *testing.T) {
	r, err := NewResolver([]string{"--run-once"}, envLookup(map[string]string{"STREAMLET_RUN_ONCE": "false"}))
	require.NoError(t, err)
	s, err := r.Resolve(map[string]any{"run_once": false})
	require.NoError(t, err)
	assert.True(t, s.RunOnce)
}

func TestResolve_RepeatableConfigFlag(t *testing.T) {
	r, err := NewResolver([]string{"--config", "a.yaml", "--config", "b.yaml"}, noEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.yaml", "b.yaml"}, r.ConfigPaths())
}

func TestResolve_InvalidCeleryPoolRejected(t *testing.T) {
	r, err := NewResolver([]string{"--celery-pool", "bogus"}, noEnv(nil))
	require.NoError(t, err)
	_, err = r.Resolve(nil)
	require.Error(t, err)
}

func TestResolve_InvalidEnvIntRejected(t *testing.T) {
	r, err := NewResolver(nil, envLookup(map[string]string{"STREAMLET_LOG_LEVEL": "not-a-number"}))
	require.NoError(t, err)
	_, err = r.Resolve(nil)
	require.Error(t, err)
}

package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Biscgit/streamlet/module"
)

type recordingModule struct {
	module.NoopLifecycle
	name   string
	events *[]string
	failOn string
}

func (r *recordingModule) Name() string { return r.name }

func (r *recordingModule) OnConnect(context.Context) error {
	*r.events = append(*r.events, "connect:"+r.name)
	if r.failOn == "connect" {
		return errors.New("boom")
	}
	return nil
}

func (r *recordingModule) OnPreShutdown(context.Context) error {
	*r.events = append(*r.events, "pre:"+r.name)
	if r.failOn == "pre" {
		return errors.New("boom")
	}
	return nil
}

func (r *recordingModule) OnShutdown(context.Context) error {
	*r.events = append(*r.events, "shutdown:"+r.name)
	if r.failOn == "shutdown" {
		return errors.New("boom")
	}
	return nil
}

func TestConnect_RunsInOrder(t *testing.T) {
	var events []string
	mods := []module.Module{
		&recordingModule{name: "a", events: &events},
		&recordingModule{name: "b", events: &events},
	}
	mgr := New(nil, mods)
	require.NoError(t, mgr.Connect(context.Background()))
	assert.Equal(t, []string{"connect:a", "connect:b"}, events)
}

func TestConnect_AbortsOnFirstFailure(t *testing.T) {
	var events []string
	mods := []module.Module{
		&recordingModule{name: "a", events: &events, failOn: "connect"},
		&recordingModule{name: "b", events: &events},
	}
	mgr := New(nil, mods)
	err := mgr.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"connect:a"}, events)
}

func TestShutdown_PreAllThenShutdownReverse(t *testing.T) {
	var events []string
	mods := []module.Module{
		&recordingModule{name: "a", events: &events},
		&recordingModule{name: "b", events: &events},
	}
	mgr := New(nil, mods)
	mgr.Shutdown(context.Background())
	assert.Equal(t, []string{"pre:a", "pre:b", "shutdown:b", "shutdown:a"}, events)
}

func TestShutdown_FailuresDoNotHaltOtherHooks(t *testing.T) {
	var events []string
	mods := []module.Module{
		&recordingModule{name: "a", events: &events, failOn: "pre"},
		&recordingModule{name: "b", events: &events, failOn: "shutdown"},
	}
	mgr := New(nil, mods)
	mgr.Shutdown(context.Background())
	assert.Equal(t, []string{"pre:a", "pre:b", "shutdown:b", "shutdown:a"}, events)
}

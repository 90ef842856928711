// Package lifecycle implements the Lifecycle Manager:
// ordered on_connect at startup, then on_pre_shutdown followed by
// reverse-order on_shutdown when the process is asked to stop.
package lifecycle

import (
	"context"
	"log/slog"

	"github.com/Biscgit/streamlet/module"
	"github.com/Biscgit/streamlet/streamleterr"
)

// Manager drives the Lifecycle capability of a fixed, ordered set of
// modules. The order passed to Connect is also the order used by
// PreShutdown; Shutdown always walks it in reverse.
type Manager struct {
	logger  *slog.Logger
	modules []module.Module
}

// New returns a Manager over mods in registration order.
func New(logger *slog.Logger, mods []module.Module) *Manager {
	return &Manager{logger: logger, modules: mods}
}

// Connect runs OnConnect for every module in order. The first failure
// aborts startup and no further
// hooks run.
func (m *Manager) Connect(ctx context.Context) error {
	for _, mod := range m.modules {
		lc := module.AsLifecycle(mod)
		if err := lc.OnConnect(ctx); err != nil {
			return streamleterr.New(streamleterr.KindStartupHookFailed, "", err).WithModule(mod.Name(), "")
		}
	}
	return nil
}

// Shutdown runs OnPreShutdown on every module in registration order
// (modules may still issue tasks, typically to flush), then OnShutdown in
// reverse order (must close resources). Failures of either hook are
// logged only; they never block the rest of shutdown.
func (m *Manager) Shutdown(ctx context.Context) {
	for _, mod := range m.modules {
		lc := module.AsLifecycle(mod)
		if err := lc.OnPreShutdown(ctx); err != nil {
			m.logPreShutdownFailure(mod, err)
		}
	}
	for i := len(m.modules) - 1; i >= 0; i-- {
		mod := m.modules[i]
		lc := module.AsLifecycle(mod)
		if err := lc.OnShutdown(ctx); err != nil {
			m.logShutdownFailure(mod, err)
		}
	}
}

func (m *Manager) logPreShutdownFailure(mod module.Module, err error) {
	if m.logger == nil {
		return
	}
	m.logger.Error("pre-shutdown hook failed",
		"kind", streamleterr.KindShutdownHookFailed,
		"module", mod.Name(),
		"error", err)
}

func (m *Manager) logShutdownFailure(mod module.Module, err error) {
	if m.logger == nil {
		return
	}
	m.logger.Error("shutdown hook failed",
		"kind", streamleterr.KindShutdownHookFailed,
		"module", mod.Name(),
		"error", err)
}

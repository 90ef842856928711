package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/Biscgit/streamlet/chain"
	"github.com/Biscgit/streamlet/config"
	"github.com/Biscgit/streamlet/domain"
	"github.com/Biscgit/streamlet/engine"
	"github.com/Biscgit/streamlet/registry"
	"github.com/Biscgit/streamlet/settings"
)

const shutdownGrace = 30 * time.Second

func main() {
	resolver, err := settings.NewResolver(os.Args[1:], os.LookupEnv)
	if err != nil {
		log.Fatalf("settings: %v", err)
	}
	paths := resolver.ConfigPaths()
	if len(paths) == 0 {
		log.Fatal("at least one --config path is required")
	}

	reg := registry.New()
	if err := domain.RegisterBuiltins(reg, nil); err != nil {
		log.Fatalf("registering builtin modules: %v", err)
	}

	// allow_none_metric, disable_default, and skip_disabled_validation gate
	// Load's own schema and invariant checks, so they must be known before
	// the document is parsed. Resolve them from CLI/env only here; Load does
	// not see flow.settings values for these keys, since reading them would
	// require the document Load itself is about to validate.
	// nested_attr_seperator is not read by Load; the frame builder takes it
	// from the fully resolved settings, so a flow.settings value for it
	// takes effect.
	preResolve, err := resolver.Resolve(nil)
	if err != nil {
		log.Fatalf("settings: %v", err)
	}

	result, err := config.Load(config.LoadOptions{
		RootPath:               paths[0],
		ExtraPaths:             paths[1:],
		Registry:               reg,
		AllowNoneMetric:        preResolve.AllowNoneMetric,
		NestedSeparator:        preResolve.NestedAttrSeparator,
		DisableDefault:         preResolve.DisableDefault,
		SkipDisabledValidation: preResolve.SkipDisabledValidation,
	})
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	st, err := resolver.Resolve(result.Document.Flow.Settings)
	if err != nil {
		log.Fatalf("settings: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.Level(st.LogLevel),
	}))

	if st.PrintConfig {
		out, err := config.Marshal(result.Normalized)
		if err != nil {
			log.Fatalf("print-config: %v", err)
		}
		fmt.Println(out)
		return
	}
	if st.OnlyValidate {
		chains, err := chain.CompileAll(result.Document)
		if err != nil {
			log.Fatalf("chain compilation error: %v", err)
		}
		fmt.Println("configuration is valid")
		fmt.Println(chain.FormatAll(chains))
		return
	}

	flow, err := engine.Build(engine.Options{
		Document: result.Document,
		Registry: reg,
		Settings: st,
		Logger:   logger,
	})
	if err != nil {
		exitWithTraceback(logger, st.PrintTraceback, "building flow", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := flow.Connect(ctx); err != nil {
		exitWithTraceback(logger, st.PrintTraceback, "connecting modules", err)
	}
	if err := flow.Start(ctx); err != nil {
		exitWithTraceback(logger, st.PrintTraceback, "starting dispatcher", err)
	}
	logger.Info("streamletd started", "run_once", st.RunOnce, "celery_pool", st.CeleryPool)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if st.RunOnce {
		select {
		case <-flow.Quiesced():
			logger.Info("run-once fires complete, exiting")
		case <-sigCh:
			logger.Info("received shutdown signal during run-once fires")
		}
	} else {
		<-sigCh
		logger.Info("received shutdown signal")
	}

	flow.Stop(context.Background(), shutdownGrace)
	logger.Info("streamletd stopped")
}

// exitWithTraceback logs err and exits 1. When print-traceback is enabled
// it attaches the current stack under a "stack" attribute; otherwise the
// stack is suppressed to keep the log line single-purpose.
func exitWithTraceback(logger *slog.Logger, printTraceback bool, msg string, err error) {
	if printTraceback {
		logger.Error(msg, "error", err, "stack", string(debug.Stack()))
	} else {
		logger.Error(msg, "error", err)
	}
	os.Exit(1)
}

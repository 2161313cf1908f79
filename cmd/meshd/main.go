// Command meshd wires the mesh's six components (CC/CP/PMS/ACE/TSO/DSS)
// into a single long-running node process. It is the mesh host referenced
// throughout spec.md — not a CLI surface for operators (those, `fcp`,
// `fcp-reqcheck`, `fcp doctor`, and friends, are explicitly out of scope;
// see spec.md §1).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fcpmesh/mesh/config"
	"github.com/fcpmesh/mesh/telemetry"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a TOML mesh host configuration document")
		dryRun     = flag.Bool("dry-run", false, "construct and validate the host, then exit")
	)
	flag.Parse()

	logger, err := telemetry.NewLogger()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Default()
	if *configPath != "" {
		raw, err := os.ReadFile(*configPath)
		if err != nil {
			logger.Fatal("meshd: failed to read config", zap.String("path", *configPath), zap.Error(err))
		}
		cfg, err = config.LoadTOML(raw)
		if err != nil {
			logger.Fatal("meshd: failed to parse config", zap.String("path", *configPath), zap.Error(err))
		}
	}

	host, err := NewHost(cfg, logger)
	if err != nil {
		logger.Fatal("meshd: failed to construct host", zap.Error(err))
	}

	logger.Info("meshd: host constructed",
		zap.String("mesh_endpoint", cfg.MeshEndpoint),
		zap.Duration("self_check_timeout", cfg.SelfCheckTimeout()),
		zap.Bool("strict_validation", cfg.StrictValidation),
	)

	if *dryRun {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("meshd: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := host.Shutdown(shutdownCtx); err != nil {
		logger.Error("meshd: shutdown encountered an error", zap.Error(err))
	}
}

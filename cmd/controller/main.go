package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/krishitantra/seslm-controller/internal/analyzer"
	"github.com/krishitantra/seslm-controller/internal/api"
	"github.com/krishitantra/seslm-controller/internal/config"
	"github.com/krishitantra/seslm-controller/internal/drift"
	"github.com/krishitantra/seslm-controller/internal/evolution"
	"github.com/krishitantra/seslm-controller/internal/governance"
	"github.com/krishitantra/seslm-controller/internal/modelrt"
	"github.com/krishitantra/seslm-controller/internal/observability"
	"github.com/krishitantra/seslm-controller/internal/profile"
	"github.com/krishitantra/seslm-controller/internal/registry"
	"github.com/krishitantra/seslm-controller/internal/rollback"
	"github.com/krishitantra/seslm-controller/internal/serving"
	"github.com/krishitantra/seslm-controller/internal/telemetry"
)

// #region main
func main() {
	configPath := flag.String("config", "seslm.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	// One SQLite file backs telemetry, the registry, and the audit log.
	store, err := telemetry.NewStore(cfg.Database.Path)
	if err != nil {
		logger.Fatal("open telemetry store", zap.Error(err))
	}
	defer store.Close()

	reg, err := registry.NewStoreWithDB(store.DB())
	if err != nil {
		logger.Fatal("open version registry", zap.Error(err))
	}
	auditLog, err := governance.NewLogWithDB(store.DB())
	if err != nil {
		logger.Fatal("open audit log", zap.Error(err))
	}

	if summary, err := reg.GetSummary(); err == nil {
		observability.RegisteredVersions.Set(float64(summary.TotalVersions))
	}

	runtime := modelrt.NewClient(cfg.Runtime.URL, cfg.Runtime.RequestTimeout)

	driftCfg := drift.DefaultConfig()
	driftCfg.WindowSize = cfg.Drift.WindowSize
	driftCfg.Threshold = cfg.Drift.Threshold
	detector := drift.NewDetector(runtime, driftCfg)

	analyzerCfg := analyzer.DefaultConfig()
	analyzerCfg.PruneThreshold = cfg.Analyzer.PruneThreshold
	analyzerCfg.MaxPruneRatio = cfg.Analyzer.MaxPruneRatio
	analyzerCfg.HighSparsity = cfg.Analyzer.HighSparsity
	analyzerCfg.ProtectedPrefixes = cfg.Analyzer.ProtectedPrefixes
	profiler := profile.NewProfiler(store, analyzer.NewAnalyzer(analyzerCfg), logger)

	backup := rollback.NewManager(cfg.Models.Dir, reg, logger)

	evoCfg := evolution.DefaultConfig()
	evoCfg.Cooldown = cfg.Evolution.Cooldown
	evoCfg.MaxSubsetSize = cfg.Evolution.MaxSubsetSize
	evoCfg.LatencyTargetPct = cfg.Evolution.LatencyTarget
	evoCfg.MemoryTargetPct = cfg.Evolution.MemoryTarget

	orchestrator := evolution.NewOrchestrator(profiler, runtime, reg, backup, auditLog, evoCfg, logger)
	trigger := evolution.NewTrigger(orchestrator, auditLog, evoCfg.Cooldown, logger)

	svc := serving.NewService(runtime, store, detector, trigger, logger)
	gov := governance.NewManager(auditLog, reg, backup, logger)

	server := api.NewServer(svc, runtime, store, detector, profiler, trigger, reg, gov, logger)

	logger.Info("controller starting",
		zap.String("addr", cfg.Server.Addr),
		zap.String("db", cfg.Database.Path),
		zap.String("runtime", cfg.Runtime.URL),
	)
	if err := server.Run(cfg.Server.Addr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

// #endregion main

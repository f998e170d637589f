package main

import (
	"context"
	"log"
	"time"

	"evidence-capture/internal/core/cache"
	"evidence-capture/internal/core/config"
	"evidence-capture/internal/core/logger"
	"evidence-capture/internal/core/proxy"
	"evidence-capture/internal/core/server"
	carrieradapters "evidence-capture/internal/features/carriers/adapters"
	evidenceadapters "evidence-capture/internal/features/evidence/adapters"
	evidencehandler "evidence-capture/internal/features/evidence/handler"
	evidenceservice "evidence-capture/internal/features/evidence/service"
	syncadapters "evidence-capture/internal/features/sync/adapters"
	synchandler "evidence-capture/internal/features/sync/handler"
	syncports "evidence-capture/internal/features/sync/ports"
	syncservice "evidence-capture/internal/features/sync/service"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
	)

	// Initialize Evidence Store
	store, err := evidenceadapters.Open(cfg.Evidence.DBPath, cfg.Evidence.ScreenshotDir)
	if err != nil {
		l.Fatal("Failed to open evidence store", zap.Error(err))
	}
	defer store.Close()
	l.Info("Evidence store ready", zap.String("db_path", cfg.Evidence.DBPath))

	// Initialize Coordination Cache and run Health Check
	redisCache, err := cache.NewRedisAdapter(cfg.Redis.URL)
	if err != nil {
		l.Fatal("Failed to create Redis adapter", zap.Error(err))
	}
	defer redisCache.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisCache.Ping(pingCtx); err != nil {
		cancel()
		l.Fatal("Redis Health Check Failed", zap.Error(err))
	}
	cancel()
	l.Info("Redis connection verified")

	// Initialize Lease Manager
	leaseManager := syncadapters.NewRedisLeaseManager(redisCache, cfg.LeaseTTL())

	// Initialize Carrier Registry
	registry := carrieradapters.NewRegistry(carrieradapters.ParseTemplates(cfg.Sync.CarrierTemplates))

	// Initialize Screenshot Capturer
	capturer := syncadapters.NewRodCapturer(
		time.Duration(cfg.Capture.TimeoutSeconds)*time.Second,
		proxy.Settings{
			Enabled:  cfg.Proxy.Enabled,
			Hostname: cfg.Proxy.Hostname,
			Port:     cfg.Proxy.Port,
			Username: cfg.Proxy.Username,
			Password: cfg.Proxy.Password,
		},
	)

	// Initialize Vision Extractor
	visionClient := syncadapters.NewVisionClient(
		cfg.Vision.URL,
		cfg.Vision.APIKey,
		time.Duration(cfg.Vision.TimeoutSeconds)*time.Second,
		cfg.Vision.ConfidenceThreshold,
	)

	// Initialize Reconciliation Sink
	var sink syncports.ReconciliationSink
	if cfg.Reconciliation.CaseManagementURL != "" {
		sink = syncadapters.NewHTTPReconciliationSink(
			cfg.Reconciliation.CaseManagementURL,
			time.Duration(cfg.Reconciliation.TimeoutSeconds)*time.Second,
		)
		l.Info("Reconciliation events will be delivered to case management",
			zap.String("url", cfg.Reconciliation.CaseManagementURL),
		)
	} else {
		sink = syncadapters.NewLogSink()
		l.Warn("No case management URL configured, reconciliation events will only be logged")
	}

	// Initialize Sync Orchestrator & Handler
	orchestrator := syncservice.NewOrchestrator(
		registry,
		capturer,
		visionClient,
		leaseManager,
		store,
		sink,
		syncservice.Config{
			MaxAttempts:      cfg.Sync.MaxAttempts,
			BackoffBase:      time.Duration(cfg.Sync.BackoffBaseMS) * time.Millisecond,
			BackoffCap:       time.Duration(cfg.Sync.BackoffCapMS) * time.Millisecond,
			BatchConcurrency: cfg.Sync.BatchConcurrency,
			AttemptBudget:    cfg.AttemptBudget(),
		},
	)
	syncHdl := synchandler.NewSyncHandler(orchestrator)

	// Initialize Evidence Service & Handler
	evidenceSvc := evidenceservice.NewService(store)
	evidenceHdl := evidencehandler.NewEvidenceHandler(evidenceSvc)

	srv := server.New(cfg)

	// Register Routes
	srv.App.Post("/sync", syncHdl.SyncOne)
	srv.App.Post("/sync/batch", syncHdl.SyncBatch)
	srv.App.Get("/evidence/records/:id", evidenceHdl.GetRecord)
	srv.App.Get("/evidence/:shipmentID", evidenceHdl.GetCurrentStatus)
	srv.App.Get("/evidence/:shipmentID/history", evidenceHdl.GetHistory)

	if err := srv.Run(); err != nil {
		l.Fatal("Server failed to start", zap.Error(err))
	}
}

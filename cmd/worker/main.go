package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/stealth-engine/internal/config"
	"github.com/jwebster45206/stealth-engine/internal/logger"
	"github.com/jwebster45206/stealth-engine/internal/observe"
	"github.com/jwebster45206/stealth-engine/internal/services/events"
	"github.com/jwebster45206/stealth-engine/internal/services/queue"
	"github.com/jwebster45206/stealth-engine/internal/storage"
	"github.com/jwebster45206/stealth-engine/internal/worker"
	"github.com/jwebster45206/stealth-engine/pkg/scenario"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)

	log.Info("Starting Stealth Engine Worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL,
		"scenario_path", cfg.ScenarioPath)

	scn, err := scenario.Load(cfg.ScenarioPath)
	if err != nil {
		log.Error("Failed to load scenario", "error", err, "path", cfg.ScenarioPath)
		os.Exit(1)
	}

	encounterID := uuid.Nil
	if cfg.EncounterID != "" {
		encounterID, err = uuid.Parse(cfg.EncounterID)
		if err != nil {
			log.Error("Invalid ENCOUNTER_ID", "error", err, "encounter_id", cfg.EncounterID)
			os.Exit(1)
		}
	}

	queueClient, err := queue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()
	log.Info("Queue service initialized successfully")

	storageService, err := storage.NewRedisStorage(cfg.RedisURL, cfg.DataDir, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := storageService.Close(); err != nil {
			log.Error("Error closing storage", "error", err)
		}
	}()
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := storageService.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage service initialized successfully")

	var metrics *observe.Metrics
	if cfg.MetricsEnabled {
		shutdown, err := observe.InitProvider(context.Background())
		if err != nil {
			log.Error("Failed to initialize metrics", "error", err)
			os.Exit(1)
		}
		defer func() { _ = shutdown(context.Background()) }()
		metrics = observe.DefaultMetrics()
	}

	deps := worker.Deps{
		Redis:    queueClient.GetRedisClient(),
		Commands: queue.NewCommandQueue(queueClient),
		Storage:  storageService,
		Metrics:  metrics,
	}
	if cfg.EventsEnabled {
		deps.Broadcaster = events.NewBroadcaster(queueClient.GetRedisClient(), log)
	}

	w, err := worker.New(scn, worker.Options{
		WorkerID:      os.Getenv("WORKER_ID"),
		EncounterID:   encounterID,
		TickInterval:  cfg.TickInterval(),
		SnapshotEvery: cfg.SnapshotEvery,
		Seed:          cfg.RNGSeed,
	}, deps, log)
	if err != nil {
		log.Error("Failed to create worker", "error", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() { errc <- w.Start() }()

	log.Info("Worker started", "encounter_id", w.EncounterID().String(), "worker_id", w.ID())

	select {
	case <-quit:
		log.Info("Worker shutdown signal received")
		w.Stop()
		if err := <-errc; err != nil {
			log.Error("Worker error", "error", err)
		}
	case err := <-errc:
		if err != nil {
			log.Error("Worker error", "error", err)
			os.Exit(1)
		}
	}

	log.Info("Worker exited")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/stealth-engine/internal/config"
	"github.com/jwebster45206/stealth-engine/internal/handlers"
	"github.com/jwebster45206/stealth-engine/internal/logger"
	"github.com/jwebster45206/stealth-engine/internal/observe"
	"github.com/jwebster45206/stealth-engine/internal/services"
	"github.com/jwebster45206/stealth-engine/internal/services/events"
	"github.com/jwebster45206/stealth-engine/internal/services/queue"
	"github.com/jwebster45206/stealth-engine/internal/storage"
	"github.com/jwebster45206/stealth-engine/internal/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)

	log.Info("Starting Stealth Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"tick_rate", cfg.TickRate,
		"events_enabled", cfg.EventsEnabled)

	if cfg.MetricsEnabled {
		shutdown, err := observe.InitProvider(context.Background())
		if err != nil {
			log.Error("Failed to initialize metrics", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Error("Error shutting down metrics provider", "error", err)
			}
		}()
	}
	metrics := observe.DefaultMetrics()

	storageService, err := storage.NewRedisStorage(cfg.RedisURL, cfg.DataDir, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := storageService.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	queueClient, err := queue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	commands := queue.NewCommandQueue(queueClient)

	deps := worker.Deps{
		Redis:    queueClient.GetRedisClient(),
		Commands: commands,
		Storage:  storageService,
		Metrics:  metrics,
	}
	var eventsHandler *handlers.EventsHandler
	if cfg.EventsEnabled {
		deps.Broadcaster = events.NewBroadcaster(queueClient.GetRedisClient(), log)
		eventsHandler = handlers.NewEventsHandler(queueClient.GetRedisClient(), log)
	}

	manager := worker.NewManager(worker.Options{
		TickInterval:  cfg.TickInterval(),
		SnapshotEvery: cfg.SnapshotEvery,
		Seed:          cfg.RNGSeed,
	}, deps, log)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(map[string]services.HealthChecker{
		"redis":   services.RedisPinger{Client: queueClient.GetRedisClient()},
		"storage": storageService,
	}, log)
	mux.Handle("/health", healthHandler)

	scenarioHandler := handlers.NewScenarioHandler(log, storageService)
	mux.Handle("/v1/scenarios", scenarioHandler)
	mux.Handle("/v1/scenarios/", scenarioHandler)

	encounterHandler := handlers.NewEncounterHandler(log, storageService, commands, manager, eventsHandler)
	mux.Handle("/v1/encounters", encounterHandler)
	mux.Handle("/v1/encounters/", encounterHandler)

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     observe.Middleware(metrics, log)(mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the event stream holds its connection open
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return manager.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Server is shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server exited with error", "error", err)
	}

	if err := queueClient.Close(); err != nil {
		log.Error("Error closing queue client", "error", err)
	}
	if err := storageService.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}

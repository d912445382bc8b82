package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/arena-gamesync/internal/auth"
	"github.com/arena-gamesync/internal/config"
	"github.com/arena-gamesync/internal/countdown"
	"github.com/arena-gamesync/internal/handler"
	"github.com/arena-gamesync/internal/kafka"
	"github.com/arena-gamesync/internal/memstore"
	"github.com/arena-gamesync/internal/metrics"
	"github.com/arena-gamesync/internal/postgres"
	"github.com/arena-gamesync/internal/service"
	"github.com/arena-gamesync/internal/websocket"
	"github.com/arena-gamesync/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := config.LoadDotEnv(*envPath); err != nil {
		logger.Warn("failed to load .env file", "path", *envPath, "error", err)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	checks := make(map[string]handler.Pinger)

	// Initialize score storage
	var repo service.Repository
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		logger.Warn("using in-memory storage, results are lost on restart")
		repo = memstore.New()
	default:
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		postgresRepo, err := postgres.NewRepository(ctx, &cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer postgresRepo.Close()
		logger.Info("connected to PostgreSQL")

		if err := postgresRepo.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		repo = postgresRepo
	}
	checks["storage"] = repo

	// Initialize countdown store
	var countdowns countdown.Store
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		client, err := countdown.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		logger.Info("connected to Redis")

		redisStore := countdown.NewRedisStore(client, cfg.Redis.CountdownTTL)
		countdowns = redisStore
		checks["redis"] = redisStore
	} else {
		logger.Info("using in-memory countdown store")
		countdowns = countdown.NewMemoryStore()
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(m, logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize services
	gameSyncService := service.NewGameSyncService(countdowns, repo, wsHub, m, logger)
	scoreService := service.NewScoreService(repo, wsHub, m, logger)
	leaderboardService := service.NewLeaderboardService(repo, &cfg.Leaderboard, m, logger)

	// Initialize stale game closer
	staleCloser := worker.NewStaleGameCloser(repo, &cfg.Worker, m, logger)
	if cfg.Worker.Enabled {
		if err := staleCloser.Start(ctx); err != nil {
			logger.Error("failed to start stale game closer", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for result ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, scoreService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	verifier := auth.NewVerifier(cfg.Auth.AdminSecret)
	if !verifier.Enabled() {
		logger.Warn("auth.admin_secret is empty, admin endpoints will reject every request")
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(handler.Dependencies{
		GameSync:    gameSyncService,
		Scores:      scoreService,
		Leaderboard: leaderboardService,
		Hub:         wsHub,
		Verifier:    verifier,
		Metrics:     m,
		Checks:      checks,
	}, cfg, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "storage", cfg.Storage.Driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Shutdown HTTP server first so no new requests reach the services
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	wsHub.Stop()

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	if err := staleCloser.Stop(); err != nil {
		logger.Error("failed to stop stale game closer", "error", err)
	}

	logger.Info("server stopped")
}

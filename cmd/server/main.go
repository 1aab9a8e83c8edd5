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
	"time"

	"github.com/dino-runner/internal/chat"
	"github.com/dino-runner/internal/config"
	"github.com/dino-runner/internal/game"
	"github.com/dino-runner/internal/handler"
	"github.com/dino-runner/internal/kafka"
	"github.com/dino-runner/internal/postgres"
	"github.com/dino-runner/internal/redis"
	"github.com/dino-runner/internal/service"
	"github.com/dino-runner/internal/websocket"
	"github.com/dino-runner/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to optional .env file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Setup structured logging
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := config.LoadEnvFile(*envPath); err != nil {
		logger.Warn("failed to load env file", "path", *envPath, "error", err)
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

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgresRepo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := postgresRepo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	checks := []handler.ReadyCheck{{Name: "postgres", Ping: postgresRepo.Ping}}

	// Initialize Redis; the leaderboard still works from PostgreSQL without it
	var cache service.LeaderboardCache
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	redisCache, err := redis.NewLeaderboardCache(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("failed to connect to Redis, continuing without cache", "error", err)
	} else {
		defer redisCache.Close()
		cache = redisCache
		checks = append(checks, handler.ReadyCheck{Name: "redis", Ping: redisCache.Ping})
		logger.Info("connected to Redis")
	}

	// Start the game loop
	hub := websocket.NewHub(logger)
	loop := game.NewLoop(game.Config{
		TickRate:      cfg.Game.TickRate,
		SpawnInterval: cfg.Game.SpawnInterval,
		GameWidth:     cfg.Game.GameWidth,
		ObstacleMode:  cfg.Game.ObstacleMode,
		PlayerNameMax: cfg.Game.PlayerNameMax,
		Chat:          chatConfig(cfg),
	}, hub, logger)
	go loop.Run(ctx)

	// Initialize services
	leaderboardService := service.NewLeaderboardService(
		postgresRepo,
		cache,
		loop,
		&cfg.Leaderboard,
		logger,
	)

	// Initialize refresh worker; Start warms the cache
	refreshWorker := worker.NewRefreshWorker(leaderboardService, &cfg.Sync, logger)
	if cfg.Sync.Enabled {
		if err := refreshWorker.Start(ctx); err != nil {
			logger.Error("failed to start refresh worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for bulk score ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, leaderboardService, logger)
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

	httpHandler := handler.NewHandler(leaderboardService, loop, cfg.Server.ClientURL, logger, checks...)

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
		logger.Info("starting HTTP server",
			"port", cfg.Server.Port,
			"client_url", cfg.Server.ClientURL,
			"obstacle_mode", cfg.Game.ObstacleMode,
		)
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

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the game loop; this closes every socket
	loop.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop refresh worker
	if err := refreshWorker.Stop(); err != nil {
		logger.Error("failed to stop refresh worker", "error", err)
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}

func chatConfig(cfg *config.Config) chat.Config {
	return chat.Config{
		HistoryLimit:     cfg.Chat.HistoryLimit,
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		MaxNameLength:    cfg.Chat.MaxNameLength,
		Emojis:           cfg.Chat.Emojis,
	}
}

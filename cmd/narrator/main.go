package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mittens-dev/pipeline-panic/internal/history"
	"github.com/mittens-dev/pipeline-panic/internal/infra"
	"github.com/mittens-dev/pipeline-panic/internal/leaderboard"
	"github.com/mittens-dev/pipeline-panic/internal/narrator"
	"github.com/mittens-dev/pipeline-panic/internal/repository/postgres"
	"github.com/mittens-dev/pipeline-panic/internal/server"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Leaderboard: optional, Redis-backed.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, leaderboard disabled", zap.Error(err))
			rdb = nil
		}
		cancel()
	}
	lb := leaderboard.New(rdb, logger)

	// Deployment history: optional, Postgres-backed.
	var storage history.Storage
	if cfg.Database.URL != "" {
		repo, err := postgres.NewHistoryRepo(cfg.Database.URL)
		if err != nil {
			logger.Fatal("init history storage", zap.Error(err))
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := repo.Ping(pingCtx); err != nil {
			logger.Fatal("database unreachable", zap.Error(err))
		}
		cancel()
		defer repo.Close()
		storage = repo
	}
	recorder := history.NewRecorder(storage, logger, history.Options{
		BufferSize:    cfg.History.BufferSize,
		BatchSize:     cfg.History.BatchSize,
		FlushInterval: cfg.History.FlushInterval,
	})
	recorder.Start()
	defer recorder.Close()

	reg := prometheus.NewRegistry()
	n := narrator.New(logger, cfg.Narrator.LogCadence)
	srv := server.New(logger, cfg.Narrator, n, recorder, lb, cfg.Leaderboard.TopN, reg)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("narrator service started", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("narrator service stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("narrator service exited")
}

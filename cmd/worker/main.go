package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"eventattend/internal/attendance"
	"eventattend/internal/cache"
	"eventattend/internal/config"
	"eventattend/internal/logger"
	"eventattend/internal/queue"
	"eventattend/internal/store"
	"eventattend/internal/worker"
)

// Worker consumes change notifications from Redis, refreshes cached instance reports and
// precomputes the daily dashboard.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logger.Init(cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	if cfg.DBDriver == "memory" {
		log.Error("worker needs a shared database, set DB_DRIVER to pgx or sqlite3")
		os.Exit(1)
	}
	db, err := store.NewDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	if !redisClient.Healthy(ctx) {
		log.Error("redis not reachable", "addr", cfg.RedisAddr)
		os.Exit(1)
	}
	defer redisClient.Close()

	repo := attendance.NewSQLRepository(db.Client, cfg.DBDriver)
	if err := repo.Migrate(ctx); err != nil {
		log.Error("migrate failed", "err", err)
		os.Exit(1)
	}
	svc := attendance.NewService(repo,
		attendance.WithLocation(cfg.Location()),
		attendance.WithLogger(log),
		attendance.WithCache(cache.NewReports(redisClient.Raw(), cfg.CacheTTL)),
	)

	w := worker.New(svc, queue.NewRedisQueue(redisClient.Raw(), cfg.QueueKey), log)
	jobs, err := w.Schedule(ctx, cfg.DashboardCron, cfg.Location())
	if err != nil {
		log.Error("schedule failed", "err", err)
		os.Exit(1)
	}
	defer func() { <-jobs.Stop().Done() }()

	if err := w.Run(ctx); err != nil {
		log.Error("worker failed", "err", err)
	}
}

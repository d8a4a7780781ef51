package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eventattend/internal/attendance"
	"eventattend/internal/auth"
	"eventattend/internal/cache"
	"eventattend/internal/config"
	"eventattend/internal/handler"
	"eventattend/internal/httpmiddleware"
	"eventattend/internal/logger"
	"eventattend/internal/queue"
	"eventattend/internal/store"
	"eventattend/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logger.Init(cfg.Env, cfg.LogLevel)

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Error("http server failed", "err", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App, log *slog.Logger) error {
	ctx := context.Background()

	repo, db, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()

	var q queue.Queue
	inProcess := cfg.QueueBackend != "redis" || redisClient == nil
	if inProcess {
		q = queue.NewInMemory(256)
	} else {
		q = queue.NewRedisQueue(redisClient.Raw(), cfg.QueueKey)
	}

	opts := []attendance.Option{
		attendance.WithLocation(cfg.Location()),
		attendance.WithLogger(log),
		attendance.WithNotifier(queue.NewNotifier(q)),
	}
	if redisClient != nil {
		opts = append(opts, attendance.WithCache(cache.NewReports(redisClient.Raw(), cfg.CacheTTL)))
	}
	svc := attendance.NewService(repo, opts...)

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if inProcess {
		// An in-memory queue is only visible to this process, so consume it here.
		w := worker.New(svc, q, log.With("component", "worker"))
		go func() {
			if err := w.Run(workerCtx); err != nil {
				log.Error("in-process worker stopped", "err", err)
			}
		}()
		jobs, err := w.Schedule(workerCtx, cfg.DashboardCron, cfg.Location())
		if err != nil {
			return err
		}
		defer jobs.Stop()
	}

	if cfg.AdminPasswordHash == "" {
		log.Warn("ADMIN_PASSWORD_HASH not set, login disabled")
	}
	hopts := []handler.Option{handler.WithLogger(log)}
	if db != nil {
		hopts = append(hopts, handler.WithHealthCheck("db", db.Healthy))
	}
	if redisClient != nil {
		hopts = append(hopts, handler.WithHealthCheck("redis", redisClient.Healthy))
	}
	h := handler.New(
		svc,
		auth.NewSigner(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL),
		auth.NewAdmin(cfg.AdminUsername, cfg.AdminPasswordHash),
		hopts...,
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", srv.Addr, "db", cfg.DBDriver, "queue", cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", "err", err)
	}
	log.Info("server exited")
	return nil
}

// openRepository picks the storage backend. The returned DB is nil for the memory
// backend.
func openRepository(ctx context.Context, cfg config.App) (attendance.Repository, *store.DB, error) {
	if cfg.DBDriver == "memory" {
		return attendance.NewMemoryRepository(), nil, nil
	}
	db, err := store.NewDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	repo := attendance.NewSQLRepository(db.Client, cfg.DBDriver)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repo, db, nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Retry-After"},
		MaxAge:        24 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return cors.New(c)
}

// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-demo-builder/internal/config"
	pg "ai-demo-builder/internal/infra/db/postgres"
	"ai-demo-builder/internal/infra/logging"
	"ai-demo-builder/internal/infra/metrics"
	red "ai-demo-builder/internal/infra/redis"
	"ai-demo-builder/internal/infra/stages"
	"ai-demo-builder/internal/infra/web"
	"ai-demo-builder/internal/infra/worker"
	"ai-demo-builder/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	statusRepo := pg.NewStatusRepo(pool)
	if err := statusRepo.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()

	queue := red.NewJobQueue(redisClient, cfg.Queue, logger)
	locker := red.NewLocker(redisClient)

	// ---- Stage workers ----
	invoker := stages.NewHTTPInvoker(cfg.Stages, logger)

	// ---- Use cases ----
	submitUC := usecase.NewSubmitUseCase(statusRepo, queue, logger)
	statusUC := usecase.NewStatusUseCase(statusRepo)
	executor := usecase.NewPipelineExecutor(statusRepo, invoker, logger)

	// ---- Dispatcher + workers ----
	pool2 := worker.NewPool(cfg.Queue.Workers, logger)
	pool2.Start(ctx)
	defer pool2.Stop()

	dispatcher := worker.NewDispatcher(queue, statusRepo, executor, locker, cfg.Queue.VisibilityTimeout, logger)
	go dispatcher.Start(ctx, pool2)

	sweeper := worker.NewVisibilitySweeper(time.Minute, queue, logger)
	go func() { _ = sweeper.Run(ctx) }()

	// ---- HTTP API ----
	srv := web.NewServer(submitUC, statusUC, logger)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: srv.Router()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}

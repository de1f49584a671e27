// Command geofence-worker processes queued membership queries.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/geofence/internal/config"
	"github.com/luxfi/geofence/internal/engine"
	"github.com/luxfi/geofence/internal/logger"
	"github.com/luxfi/geofence/internal/metrics"
	"github.com/luxfi/geofence/internal/queue"
	"github.com/luxfi/geofence/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "YAML configuration file")
		numWorkers  = flag.Int("workers", 0, "number of worker goroutines (overrides config)")
		metricsAddr = flag.String("metrics", ":9090", "metrics server address")
	)
	flag.Parse()
	log := logger.Setup()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *numWorkers > 0 {
		cfg.Workers = *numWorkers
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q, err := queue.NewRedisQueue(queue.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Redis.Queue)
	if err != nil {
		return fmt.Errorf("create queue: %w", err)
	}
	defer q.Close()

	d, err := engine.Load(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build detector: %w", err)
	}

	pool := worker.NewPool(q, d, cfg.Workers)
	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		log.Info("metrics_listening", "addr", *metricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics_server_failed", "error", err.Error())
		}
	}()

	<-ctx.Done()
	log.Info("worker_stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics_shutdown_failed", "error", err.Error())
	}
	return pool.Stop()
}

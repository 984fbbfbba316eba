// Relay API: HTTP вход триггеров.
//
// Публикует шаблоны, принимает запуски runs, внешние события и отмены,
// управляет schedules. Выполнение шагов происходит в relay-engine.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Relay/internal/api"
	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/lock"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/scheduler"
	"github.com/shaiso/Relay/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting relay-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// RabbitMQ
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	publisher := mq.NewPublisher(mqConn, logger)

	templates := repo.NewTemplateRepo(pool)

	// Чтение runs не выполняет шагов, поэтому sender и таймеры не нужны
	reader := orchestrator.New(orchestrator.Config{
		Runs:      repo.NewRunRepo(pool),
		Steps:     repo.NewStepRepo(pool),
		Templates: templates,
		Logger:    logger,
	})

	handler := api.NewHandler(api.Config{
		Publisher: publisher,
		Templates: templates,
		Schedules: scheduler.NewTimers(scheduler.TimersConfig{
			Store:    repo.NewTimerRepo(pool),
			Notifier: publisher,
			Logger:   logger,
		}),
		Runs: reader,
		Locker: lock.New(lock.Config{
			Store:   repo.NewLockRepo(pool),
			Purpose: "template-rollout",
			Horizon: cfg.LockHorizon,
			Logger:  logger,
		}),
		DefaultTenant: cfg.TenantID,
		Logger:        logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              config.Addr(cfg.APIPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("relay-api stopped")
}

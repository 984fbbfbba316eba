// Relay Engine: выполняет runs по триггерам из RabbitMQ.
//
// Engine:
//   - Потребляет triggers.runs, triggers.steps, triggers.timers, triggers.events
//   - Отсекает повторные доставки через guard (Redis)
//   - Выполняет шаги: send через delivery, delay/wait через таймеры, branch
//   - Публикует следующий шаг обратно в очередь
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/delivery"
	"github.com/shaiso/Relay/internal/guard"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/refindex"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/scheduler"
	"github.com/shaiso/Relay/internal/stream"
	"github.com/shaiso/Relay/internal/telemetry"
	"github.com/shaiso/Relay/internal/trigger"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting relay-engine")

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

	// Redis для guard
	rdb, err := repo.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	logger.Info("redis connected")

	// RabbitMQ
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	publisher := mq.NewPublisher(mqConn, logger)

	// Таймеры и ref
	timerRepo := repo.NewTimerRepo(pool)
	timers := scheduler.NewTimers(scheduler.TimersConfig{
		Store:    timerRepo,
		Notifier: publisher,
		Logger:   logger,
	})
	refs := refindex.New(refindex.Config{Store: repo.NewRefRepo(pool), Logger: logger})

	// Оркестратор
	orch := orchestrator.New(orchestrator.Config{
		Runs:      repo.NewRunRepo(pool),
		Steps:     repo.NewStepRepo(pool),
		Templates: repo.NewTemplateRepo(pool),
		Refs:      refs,
		Timers:    timers,
		Publisher: publisher,
		Sender: delivery.NewHTTPSender(delivery.HTTPSenderConfig{
			BaseURL:    cfg.DeliveryURL,
			Timeout:    cfg.DeliveryTimeout,
			MaxRetries: cfg.DeliveryRetries,
			Logger:     logger,
		}),
		Logger: logger,
	})

	sched := scheduler.New(scheduler.Config{
		Timers:    timerRepo,
		Invoker:   publisher,
		Completer: orch,
		Logger:    logger,
	})

	router := trigger.NewRouter(trigger.Config{Engine: orch, Waker: sched, Logger: logger})
	handler := stream.New(stream.Config{
		Guard: guard.New(guard.Config{
			Store:     repo.NewSequenceRepo(rdb),
			Retention: cfg.GuardRetention,
			Logger:    logger,
		}),
		Func:   router.Handle,
		Logger: logger,
	})

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !mqConn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("rabbitmq disconnected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: config.Addr(cfg.EnginePort), Handler: mux}

	g, gctx := errgroup.WithContext(ctx)

	// Consumer на каждую очередь триггеров
	for _, queue := range []mq.Queue{mq.QueueRuns, mq.QueueSteps, mq.QueueTimers, mq.QueueEvents} {
		consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:     queue,
			Handler:   handler.Handle,
			BatchSize: cfg.ConsumerBatch,
			BatchWait: cfg.ConsumerWait,
		})
		g.Go(func() error {
			return consumer.Start(gctx)
		})
	}

	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown(context.WithoutCancel(gctx))
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("relay-engine failed", "error", err)
		os.Exit(1)
	}
	logger.Info("relay-engine stopped")
}

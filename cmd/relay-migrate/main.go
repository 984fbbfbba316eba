// Relay Migrate: применяет схему БД.
//
// Параллельные запуски (например, init-контейнеры нескольких реплик)
// сериализуются блокировкой с purpose "migration" в режиме auto:
// упавший мигратор не держит блокировку дольше LOCK_HORIZON.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/lock"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/telemetry"
)

const migrationLockKey = "schema"

func main() {
	logger := telemetry.SetupLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.EnsureLocks(ctx, pool); err != nil {
		logger.Error("failed to prepare locks", "error", err)
		os.Exit(1)
	}

	locker := lock.New(lock.Config{
		Store:   repo.NewLockRepo(pool),
		Purpose: "migration",
		Horizon: cfg.LockHorizon,
		Logger:  logger,
	})

	err = locker.WithLock(ctx, migrationLockKey, lock.ModeAuto, func(ctx context.Context) error {
		return repo.Migrate(ctx, pool)
	})
	if errors.Is(err, lock.ErrUnableToAcquireLock) {
		logger.Info("migration is running elsewhere, skipping")
		return
	}
	if err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("schema applied")
}

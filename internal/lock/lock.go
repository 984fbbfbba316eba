// Package lock реализует распределённую блокировку поверх условного создания.
//
// Режимы:
//   - ModeAuto     : блокировка с TTL (по умолчанию 48h), истёкшую можно захватить снова
//   - ModeExplicit : блокировка без срока, снимается только Release
//
// Блокировка уникальна по (lockKey, purpose).
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
)

// DefaultHorizon: TTL блокировки в режиме ModeAuto.
const DefaultHorizon = 48 * time.Hour

// ErrUnableToAcquireLock: блокировка уже удерживается.
var ErrUnableToAcquireLock = errors.New("unable to acquire lock")

// Mode: режим блокировки.
type Mode int

const (
	ModeAuto Mode = iota
	ModeExplicit
)

// String возвращает строковое представление Mode.
func (m Mode) String() string {
	if m == ModeExplicit {
		return "explicit"
	}
	return "auto"
}

// Store: хранилище блокировок с условным созданием.
type Store interface {
	Create(ctx context.Context, lock domain.LockRecord, now time.Time) error
	Delete(ctx context.Context, lockKey, purpose string) error
}

// Locker захватывает и снимает блокировки с фиксированным purpose.
type Locker struct {
	store   Store
	purpose string
	horizon time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Config: конфигурация Locker.
type Config struct {
	Store   Store
	Purpose string        // назначение блокировок, например "migration"
	Horizon time.Duration // TTL для ModeAuto (default: 48h)
	Clock   func() time.Time
	Logger  *slog.Logger
}

// New создаёт новый Locker.
func New(cfg Config) *Locker {
	horizon := cfg.Horizon
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Locker{
		store:   cfg.Store,
		purpose: cfg.Purpose,
		horizon: horizon,
		now:     clock,
		logger:  logger,
	}
}

// Acquire захватывает блокировку key. Возвращает ErrUnableToAcquireLock,
// если действующая блокировка уже есть.
func (l *Locker) Acquire(ctx context.Context, key string, mode Mode) error {
	now := l.now()
	rec := domain.LockRecord{LockKey: key, Purpose: l.purpose}
	if mode == ModeAuto {
		ttl := now.Add(l.horizon)
		rec.TTL = &ttl
	}

	err := l.store.Create(ctx, rec, now)
	if errors.Is(err, repo.ErrAlreadyExists) {
		return fmt.Errorf("%w: %s/%s", ErrUnableToAcquireLock, key, l.purpose)
	}
	if err != nil {
		return fmt.Errorf("acquire lock %s/%s: %w", key, l.purpose, err)
	}

	l.logger.Debug("lock acquired", "lock_key", key, "purpose", l.purpose, "mode", mode)
	return nil
}

// Release снимает блокировку. Отсутствующая блокировка ошибкой не считается.
func (l *Locker) Release(ctx context.Context, key string) error {
	if err := l.store.Delete(ctx, key, l.purpose); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("release lock %s/%s: %w", key, l.purpose, err)
	}
	l.logger.Debug("lock released", "lock_key", key, "purpose", l.purpose)
	return nil
}

// WithLock выполняет fn под блокировкой key и снимает её после выполнения.
func (l *Locker) WithLock(ctx context.Context, key string, mode Mode, fn func(context.Context) error) error {
	if err := l.Acquire(ctx, key, mode); err != nil {
		return err
	}
	defer func() {
		if err := l.Release(context.WithoutCancel(ctx), key); err != nil {
			l.logger.Warn("failed to release lock", "lock_key", key, "error", err)
		}
	}()
	return fn(ctx)
}

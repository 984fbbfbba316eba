package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Relay/internal/domain"
)

// LockRepo: распределённые блокировки в PostgreSQL.
type LockRepo struct {
	pool *pgxpool.Pool
}

// NewLockRepo создаёт новый LockRepo.
func NewLockRepo(pool *pgxpool.Pool) *LockRepo {
	return &LockRepo{pool: pool}
}

// Create условно создаёт блокировку (lock_key, purpose).
// Истёкшая блокировка перезаписывается. Если действующая блокировка
// уже есть, возвращает ErrAlreadyExists.
func (r *LockRepo) Create(ctx context.Context, lock domain.LockRecord, now time.Time) error {
	query := `
		INSERT INTO locks (lock_key, purpose, ttl)
		VALUES ($1, $2, $3)
		ON CONFLICT (lock_key, purpose) DO UPDATE
		SET ttl = EXCLUDED.ttl
		WHERE locks.ttl IS NOT NULL AND locks.ttl <= $4
	`
	result, err := r.pool.Exec(ctx, query, lock.LockKey, lock.Purpose, lock.TTL, now)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: lock %s/%s", ErrAlreadyExists, lock.LockKey, lock.Purpose)
	}
	return nil
}

// Delete снимает блокировку.
func (r *LockRepo) Delete(ctx context.Context, lockKey, purpose string) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM locks WHERE lock_key = $1 AND purpose = $2`,
		lockKey, purpose,
	)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package repo

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Migrate применяет схему БД. Все выражения идемпотентны (IF NOT EXISTS).
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// locksSchema: таблица блокировок нужна до захвата блокировки миграции.
const locksSchema = `CREATE TABLE IF NOT EXISTS locks (
    lock_key  TEXT NOT NULL,
    purpose   TEXT NOT NULL,
    ttl       TIMESTAMPTZ,
    PRIMARY KEY (lock_key, purpose)
)`

// EnsureLocks создаёт таблицу блокировок.
func EnsureLocks(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, locksSchema); err != nil {
		return fmt.Errorf("create locks table: %w", err)
	}
	return nil
}

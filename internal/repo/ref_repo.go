package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Relay/internal/domain"
)

// RefRepo: индекс ref → (run, step) в PostgreSQL.
type RefRepo struct {
	pool *pgxpool.Pool
}

// NewRefRepo создаёт новый RefRepo.
func NewRefRepo(pool *pgxpool.Pool) *RefRepo {
	return &RefRepo{pool: pool}
}

// Create записывает ref. Повторная запись того же (tenant, name, run) игнорируется.
func (r *RefRepo) Create(ctx context.Context, ref domain.StepRef) error {
	query := `
		INSERT INTO step_refs (tenant_id, name, run_id, step_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, name, run_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, ref.TenantID, ref.Name, ref.RunID, ref.StepID, ref.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert step ref: %w", err)
	}
	return nil
}

// GetLatest возвращает самую свежую запись ref для tenant.
func (r *RefRepo) GetLatest(ctx context.Context, tenantID, name string) (*domain.StepRef, error) {
	query := `
		SELECT tenant_id, name, run_id, step_id, created_at
		FROM step_refs
		WHERE tenant_id = $1 AND name = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var ref domain.StepRef
	err := r.pool.QueryRow(ctx, query, tenantID, name).Scan(
		&ref.TenantID,
		&ref.Name,
		&ref.RunID,
		&ref.StepID,
		&ref.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get step ref: %w", err)
	}
	return &ref, nil
}

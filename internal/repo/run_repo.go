package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Relay/internal/domain"
)

// RunRepo: репозиторий runs в PostgreSQL.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

const runColumns = `tenant_id, id, template_id, scope, source, status, cancelation_token,
		       context, error, created_at, updated_at, finished_at`

// Create создаёт run. Возвращает ErrAlreadyExists, если run с таким ID уже есть.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	sourceJSON, err := json.Marshal(run.Source)
	if err != nil {
		return fmt.Errorf("marshal source: %w", err)
	}
	contextJSON, err := json.Marshal(run.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	query := `
		INSERT INTO runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (tenant_id, id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		run.TenantID,
		run.ID,
		nullString(run.TemplateID),
		nullString(run.Scope),
		sourceJSON,
		run.Status,
		nullString(run.CancelationToken),
		contextJSON,
		nullString(run.Error),
		run.CreatedAt,
		run.UpdatedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: run %s", ErrAlreadyExists, run.ID)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, tenantID, id string) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE tenant_id = $1 AND id = $2`
	return scanRun(r.pool.QueryRow(ctx, query, tenantID, id))
}

// Update сохраняет статус, контекст и ошибку run.
func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	contextJSON, err := json.Marshal(run.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	query := `
		UPDATE runs
		SET status = $3, context = $4, error = $5, updated_at = $6, finished_at = $7
		WHERE tenant_id = $1 AND id = $2
	`
	result, err := r.pool.Exec(ctx, query,
		run.TenantID,
		run.ID,
		run.Status,
		contextJSON,
		nullString(run.Error),
		run.UpdatedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByCancelationToken возвращает runs tenant с указанным токеном отмены.
func (r *RunRepo) ListByCancelationToken(ctx context.Context, tenantID, token string) ([]domain.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE tenant_id = $1 AND cancelation_token = $2
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, tenantID, token)
	if err != nil {
		return nil, fmt.Errorf("list runs by token: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var templateID, scope, token, runError *string
	var sourceJSON, contextJSON []byte

	err := row.Scan(
		&run.TenantID,
		&run.ID,
		&templateID,
		&scope,
		&sourceJSON,
		&run.Status,
		&token,
		&contextJSON,
		&runError,
		&run.CreatedAt,
		&run.UpdatedAt,
		&run.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.TemplateID = fromNull(templateID)
	run.Scope = fromNull(scope)
	run.CancelationToken = fromNull(token)
	run.Error = fromNull(runError)

	if sourceJSON != nil {
		if err := json.Unmarshal(sourceJSON, &run.Source); err != nil {
			return nil, fmt.Errorf("unmarshal source: %w", err)
		}
	}
	if contextJSON != nil {
		if err := json.Unmarshal(contextJSON, &run.Context); err != nil {
			return nil, fmt.Errorf("unmarshal context: %w", err)
		}
	}

	return &run, nil
}

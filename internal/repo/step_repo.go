package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Relay/internal/domain"
)

// StepRepo: репозиторий шагов run в PostgreSQL.
type StepRepo struct {
	pool *pgxpool.Pool
}

// NewStepRepo создаёт новый StepRepo.
func NewStepRepo(pool *pgxpool.Pool) *StepRepo {
	return &StepRepo{pool: pool}
}

const stepColumns = `tenant_id, run_id, step_id, position, action_type, action, status,
		       created, updated, started_at, ref, idempotency_key, idempotency_expiry,
		       data, context, error`

// CreateBatch создаёт шаги одного run в одной транзакции.
// Уже существующие шаги пропускаются.
func (r *StepRepo) CreateBatch(ctx context.Context, steps []*domain.Step) error {
	query := `
		INSERT INTO steps (` + stepColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (tenant_id, run_id, step_id) DO NOTHING
	`

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, step := range steps {
			args, err := stepArgs(step)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("insert step %s: %w", step.StepID, err)
			}
		}
		return nil
	})
}

// GetByID возвращает шаг run.
func (r *StepRepo) GetByID(ctx context.Context, tenantID, runID, stepID string) (*domain.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM steps WHERE tenant_id = $1 AND run_id = $2 AND step_id = $3`
	return scanStep(r.pool.QueryRow(ctx, query, tenantID, runID, stepID))
}

// ListByRun возвращает шаги run, упорядоченные по position.
func (r *StepRepo) ListByRun(ctx context.Context, tenantID, runID string) ([]domain.Step, error) {
	query := `
		SELECT ` + stepColumns + `
		FROM steps
		WHERE tenant_id = $1 AND run_id = $2
		ORDER BY position ASC
	`
	rows, err := r.pool.Query(ctx, query, tenantID, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []domain.Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *step)
	}
	return steps, rows.Err()
}

// Claim захватывает шаг на выполнение: выставляет started_at,
// только если шаг ещё не захвачен и находится в processing.
// Возвращает ErrInvalidState, если захват не удался.
func (r *StepRepo) Claim(ctx context.Context, tenantID, runID, stepID string, at time.Time) error {
	query := `
		UPDATE steps
		SET started_at = $4, updated = $4
		WHERE tenant_id = $1 AND run_id = $2 AND step_id = $3
		  AND started_at IS NULL AND status = 'processing'
	`
	result, err := r.pool.Exec(ctx, query, tenantID, runID, stepID, at)
	if err != nil {
		return fmt.Errorf("claim step: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: step %s already claimed", ErrInvalidState, stepID)
	}
	return nil
}

// Unclaim снимает захват шага, чтобы повторная доставка триггера выполнила
// его снова. Завершённый или незахваченный шаг: ErrInvalidState.
func (r *StepRepo) Unclaim(ctx context.Context, tenantID, runID, stepID string, at time.Time) error {
	query := `
		UPDATE steps
		SET started_at = NULL, updated = $4
		WHERE tenant_id = $1 AND run_id = $2 AND step_id = $3
		  AND started_at IS NOT NULL AND status = 'processing'
	`
	result, err := r.pool.Exec(ctx, query, tenantID, runID, stepID, at)
	if err != nil {
		return fmt.Errorf("unclaim step: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.missOrInvalid(ctx, tenantID, runID, stepID, "not claimed")
	}
	return nil
}

// StoreResume сохраняет payload resume-события в context ещё не
// захваченного шага. Остальные поля строки не меняются.
// Шаг уже захвачен или завершён: ErrInvalidState.
func (r *StepRepo) StoreResume(ctx context.Context, tenantID, runID, stepID string, payload map[string]any, at time.Time) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal resume payload: %w", err)
	}

	query := `
		UPDATE steps
		SET context = COALESCE(context, '{}'::jsonb) || jsonb_build_object('` + domain.ContextResume + `', $4::jsonb),
		    updated = $5
		WHERE tenant_id = $1 AND run_id = $2 AND step_id = $3
		  AND started_at IS NULL AND status = 'processing'
	`
	result, err := r.pool.Exec(ctx, query, tenantID, runID, stepID, payloadJSON, at)
	if err != nil {
		return fmt.Errorf("store resume: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.missOrInvalid(ctx, tenantID, runID, stepID, "already started")
	}
	return nil
}

// Update сохраняет изменяемые поля шага. Записываются только шаги
// в processing: завершённый шаг не меняется (ErrInvalidState).
func (r *StepRepo) Update(ctx context.Context, step *domain.Step) error {
	dataJSON, err := json.Marshal(step.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	contextJSON, err := json.Marshal(step.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	query := `
		UPDATE steps
		SET status = $4, updated = $5, started_at = $6, data = $7, context = $8, error = $9
		WHERE tenant_id = $1 AND run_id = $2 AND step_id = $3 AND status = 'processing'
	`
	result, err := r.pool.Exec(ctx, query,
		step.TenantID,
		step.RunID,
		step.StepID,
		step.Status,
		step.Updated,
		step.StartedAt,
		dataJSON,
		contextJSON,
		nullString(step.Error),
	)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.missOrInvalid(ctx, step.TenantID, step.RunID, step.StepID, "already finished")
	}
	return nil
}

// missOrInvalid различает отсутствующий шаг и не прошедшее условие записи.
func (r *StepRepo) missOrInvalid(ctx context.Context, tenantID, runID, stepID, reason string) error {
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT status FROM steps WHERE tenant_id = $1 AND run_id = $2 AND step_id = $3`,
		tenantID, runID, stepID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get step status: %w", err)
	}
	return fmt.Errorf("%w: step %s %s (%s)", ErrInvalidState, stepID, reason, status)
}

func stepArgs(step *domain.Step) ([]any, error) {
	actionJSON, err := json.Marshal(step.Action)
	if err != nil {
		return nil, fmt.Errorf("marshal action: %w", err)
	}
	dataJSON, err := json.Marshal(step.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}
	contextJSON, err := json.Marshal(step.Context)
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}

	return []any{
		step.TenantID,
		step.RunID,
		step.StepID,
		step.Position,
		step.ActionType(),
		actionJSON,
		step.Status,
		step.Created,
		step.Updated,
		step.StartedAt,
		nullString(step.Ref),
		nullString(step.IdempotencyKey),
		step.IdempotencyExpiry,
		dataJSON,
		contextJSON,
		nullString(step.Error),
	}, nil
}

func scanStep(row pgx.Row) (*domain.Step, error) {
	var step domain.Step
	var actionType domain.ActionType
	var actionJSON, dataJSON, contextJSON []byte
	var ref, idempotencyKey, stepError *string

	err := row.Scan(
		&step.TenantID,
		&step.RunID,
		&step.StepID,
		&step.Position,
		&actionType,
		&actionJSON,
		&step.Status,
		&step.Created,
		&step.Updated,
		&step.StartedAt,
		&ref,
		&idempotencyKey,
		&step.IdempotencyExpiry,
		&dataJSON,
		&contextJSON,
		&stepError,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan step: %w", err)
	}

	step.Action, err = domain.UnmarshalAction(actionType, actionJSON)
	if err != nil {
		return nil, fmt.Errorf("unmarshal action: %w", err)
	}

	step.Ref = fromNull(ref)
	step.IdempotencyKey = fromNull(idempotencyKey)
	step.Error = fromNull(stepError)

	if dataJSON != nil {
		if err := json.Unmarshal(dataJSON, &step.Data); err != nil {
			return nil, fmt.Errorf("unmarshal data: %w", err)
		}
	}
	if contextJSON != nil {
		if err := json.Unmarshal(contextJSON, &step.Context); err != nil {
			return nil, fmt.Errorf("unmarshal context: %w", err)
		}
	}

	return &step, nil
}

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

// TimerRepo: таймеры как данные в PostgreSQL.
type TimerRepo struct {
	pool *pgxpool.Pool
}

// NewTimerRepo создаёт новый TimerRepo.
func NewTimerRepo(pool *pgxpool.Pool) *TimerRepo {
	return &TimerRepo{pool: pool}
}

const timerColumns = `tenant_id, id, kind, ttl, run_id, step_id, scope, value,
		       enabled, template_id, data, removed, created_at`

// Put создаёт или перезаписывает таймер.
func (r *TimerRepo) Put(ctx context.Context, timer *domain.Timer) error {
	args, err := timerArgs(timer)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO timers (` + timerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (tenant_id, id) DO UPDATE
		SET kind = EXCLUDED.kind, ttl = EXCLUDED.ttl, run_id = EXCLUDED.run_id,
		    step_id = EXCLUDED.step_id, scope = EXCLUDED.scope, value = EXCLUDED.value,
		    enabled = EXCLUDED.enabled, template_id = EXCLUDED.template_id, data = EXCLUDED.data,
		    removed = EXCLUDED.removed
	`
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("put timer: %w", err)
	}
	return nil
}

// Create создаёт таймер, только если записи с таким id нет.
// Возвращает false, если запись уже существует.
func (r *TimerRepo) Create(ctx context.Context, timer *domain.Timer) (bool, error) {
	args, err := timerArgs(timer)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO timers (` + timerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (tenant_id, id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("create timer: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

func timerArgs(timer *domain.Timer) ([]any, error) {
	dataJSON, err := json.Marshal(timer.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}
	return []any{
		timer.TenantID,
		timer.ID,
		timer.Kind,
		timer.TTL,
		nullString(timer.RunID),
		nullString(timer.StepID),
		nullString(timer.Scope),
		nullString(timer.Value),
		timer.Enabled,
		nullString(timer.TemplateID),
		dataJSON,
		timer.Removed,
		timer.CreatedAt,
	}, nil
}

// GetByID возвращает таймер.
func (r *TimerRepo) GetByID(ctx context.Context, tenantID, id string) (*domain.Timer, error) {
	query := `SELECT ` + timerColumns + ` FROM timers WHERE tenant_id = $1 AND id = $2`
	return scanTimer(r.pool.QueryRow(ctx, query, tenantID, id))
}

// Delete удаляет таймер и возвращает удалённую запись.
func (r *TimerRepo) Delete(ctx context.Context, tenantID, id string) (*domain.Timer, error) {
	query := `DELETE FROM timers WHERE tenant_id = $1 AND id = $2 RETURNING ` + timerColumns
	return scanTimer(r.pool.QueryRow(ctx, query, tenantID, id))
}

// SweepExpired выбирает до limit истёкших таймеров, вызывает fn для каждого
// и удаляет те, для которых fn вернул nil. Строки блокируются
// FOR UPDATE SKIP LOCKED, поэтому параллельные sweep не пересекаются.
// Delay-таймеры без TTL считаются истёкшими.
func (r *TimerRepo) SweepExpired(ctx context.Context, now time.Time, limit int, fn func(domain.Timer) error) (int, error) {
	var swept int

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			SELECT ` + timerColumns + `
			FROM timers
			WHERE (ttl IS NOT NULL AND ttl <= $1) OR (ttl IS NULL AND kind = 'delay')
			ORDER BY ttl ASC NULLS FIRST
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`
		rows, err := tx.Query(ctx, query, now, limit)
		if err != nil {
			return fmt.Errorf("select expired timers: %w", err)
		}

		var expired []domain.Timer
		for rows.Next() {
			timer, err := scanTimer(rows)
			if err != nil {
				rows.Close()
				return err
			}
			expired = append(expired, *timer)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate expired timers: %w", err)
		}

		for _, timer := range expired {
			if err := fn(timer); err != nil {
				return fmt.Errorf("notify timer %s: %w", timer.ID, err)
			}
			if _, err := tx.Exec(ctx,
				`DELETE FROM timers WHERE tenant_id = $1 AND id = $2`,
				timer.TenantID, timer.ID,
			); err != nil {
				return fmt.Errorf("delete timer %s: %w", timer.ID, err)
			}
			swept++
		}
		return nil
	})

	return swept, err
}

func scanTimer(row pgx.Row) (*domain.Timer, error) {
	var t domain.Timer
	var runID, stepID, scope, value, templateID *string
	var dataJSON []byte

	err := row.Scan(
		&t.TenantID,
		&t.ID,
		&t.Kind,
		&t.TTL,
		&runID,
		&stepID,
		&scope,
		&value,
		&t.Enabled,
		&templateID,
		&dataJSON,
		&t.Removed,
		&t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan timer: %w", err)
	}

	t.RunID = fromNull(runID)
	t.StepID = fromNull(stepID)
	t.Scope = fromNull(scope)
	t.Value = fromNull(value)
	t.TemplateID = fromNull(templateID)

	if dataJSON != nil {
		if err := json.Unmarshal(dataJSON, &t.Data); err != nil {
			return nil, fmt.Errorf("unmarshal data: %w", err)
		}
	}

	return &t, nil
}

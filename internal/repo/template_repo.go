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

// TemplateRepo: опубликованные шаблоны workflow.
type TemplateRepo struct {
	pool *pgxpool.Pool
}

// NewTemplateRepo создаёт новый TemplateRepo.
func NewTemplateRepo(pool *pgxpool.Pool) *TemplateRepo {
	return &TemplateRepo{pool: pool}
}

// Upsert создаёт шаблон или публикует новую версию существующего.
// Version и UpdatedAt в tmpl обновляются значениями из БД.
func (r *TemplateRepo) Upsert(ctx context.Context, tmpl *domain.WorkflowTemplate) error {
	stepsJSON, err := json.Marshal(tmpl.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	query := `
		INSERT INTO templates (tenant_id, id, name, steps, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, $5)
		ON CONFLICT (tenant_id, id) DO UPDATE
		SET name = EXCLUDED.name, steps = EXCLUDED.steps,
		    version = templates.version + 1, updated_at = EXCLUDED.updated_at
		RETURNING version, created_at, updated_at
	`
	err = r.pool.QueryRow(ctx, query,
		tmpl.TenantID,
		tmpl.ID,
		nullString(tmpl.Name),
		stepsJSON,
		tmpl.UpdatedAt,
	).Scan(&tmpl.Version, &tmpl.CreatedAt, &tmpl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	return nil
}

// GetByID возвращает шаблон.
func (r *TemplateRepo) GetByID(ctx context.Context, tenantID, id string) (*domain.WorkflowTemplate, error) {
	query := `
		SELECT tenant_id, id, name, steps, version, created_at, updated_at
		FROM templates
		WHERE tenant_id = $1 AND id = $2
	`
	var tmpl domain.WorkflowTemplate
	var name *string
	var stepsJSON []byte

	err := r.pool.QueryRow(ctx, query, tenantID, id).Scan(
		&tmpl.TenantID,
		&tmpl.ID,
		&name,
		&stepsJSON,
		&tmpl.Version,
		&tmpl.CreatedAt,
		&tmpl.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}

	tmpl.Name = fromNull(name)
	if err := json.Unmarshal(stepsJSON, &tmpl.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return &tmpl, nil
}

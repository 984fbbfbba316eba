// Package refindex связывает имена ref с шагами run.
//
// При создании run для каждого шага с непустым ref записывается StepRef.
// Внешние события адресуются по (tenant, ref) и разрешаются в (runID, stepID)
// через Lookup. Запись StepRef не изменяется после создания.
package refindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
)

// ErrNotFound: ref не известен.
var ErrNotFound = errors.New("step ref not found")

// Store: хранилище записей ref.
type Store interface {
	Create(ctx context.Context, ref domain.StepRef) error
	GetLatest(ctx context.Context, tenantID, name string) (*domain.StepRef, error)
}

// Index: индекс ref.
type Index struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// Config: конфигурация Index.
type Config struct {
	Store  Store
	Clock  func() time.Time
	Logger *slog.Logger
}

// New создаёт новый Index.
func New(cfg Config) *Index {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{store: cfg.Store, now: clock, logger: logger}
}

// CreateRefs записывает по одной записи для каждого шага с непустым ref.
// Шаги без ref пропускаются.
func (i *Index) CreateRefs(ctx context.Context, steps []*domain.Step) error {
	now := i.now().UTC()
	var created int

	for _, step := range steps {
		if step.Ref == "" {
			continue
		}
		ref := domain.StepRef{
			TenantID:  step.TenantID,
			Name:      step.Ref,
			RunID:     step.RunID,
			StepID:    step.StepID,
			CreatedAt: now,
		}
		if err := i.store.Create(ctx, ref); err != nil {
			return fmt.Errorf("create ref %s: %w", step.Ref, err)
		}
		created++
	}

	if created > 0 {
		i.logger.Debug("step refs created", "count", created)
	}
	return nil
}

// Lookup разрешает ref в (runID, stepID). Если ref использовался в нескольких
// runs, возвращается самый свежий. Неизвестный ref: ErrNotFound.
func (i *Index) Lookup(ctx context.Context, tenantID, ref string) (runID, stepID string, err error) {
	rec, err := i.store.GetLatest(ctx, tenantID, ref)
	if errors.Is(err, repo.ErrNotFound) {
		return "", "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return "", "", fmt.Errorf("lookup ref %s: %w", ref, err)
	}
	return rec.RunID, rec.StepID, nil
}

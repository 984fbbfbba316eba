package memstore

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
)

type stepKey struct{ tenant, run, step string }

// StepStore: in-memory хранилище шагов.
type StepStore struct {
	mu    sync.RWMutex
	steps map[stepKey]*domain.Step
}

// NewStepStore создаёт пустой StepStore.
func NewStepStore() *StepStore {
	return &StepStore{steps: make(map[stepKey]*domain.Step)}
}

func (s *StepStore) CreateBatch(_ context.Context, steps []*domain.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, step := range steps {
		key := stepKey{step.TenantID, step.RunID, step.StepID}
		if _, ok := s.steps[key]; ok {
			continue
		}
		s.steps[key] = cloneStep(step)
	}
	return nil
}

func (s *StepStore) GetByID(_ context.Context, tenantID, runID, stepID string) (*domain.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	step, ok := s.steps[stepKey{tenantID, runID, stepID}]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return cloneStep(step), nil
}

func (s *StepStore) ListByRun(_ context.Context, tenantID, runID string) ([]domain.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Step
	for key, step := range s.steps {
		if key.tenant == tenantID && key.run == runID {
			result = append(result, *cloneStep(step))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Position < result[j].Position
	})
	return result, nil
}

func (s *StepStore) Claim(_ context.Context, tenantID, runID, stepID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step, ok := s.steps[stepKey{tenantID, runID, stepID}]
	if !ok || step.StartedAt != nil || step.Status != domain.StatusProcessing {
		return fmt.Errorf("%w: step %s already claimed", repo.ErrInvalidState, stepID)
	}
	step.StartedAt = &at
	step.Updated = at
	return nil
}

func (s *StepStore) Unclaim(_ context.Context, tenantID, runID, stepID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step, ok := s.steps[stepKey{tenantID, runID, stepID}]
	if !ok {
		return repo.ErrNotFound
	}
	if step.StartedAt == nil || step.Status != domain.StatusProcessing {
		return fmt.Errorf("%w: step %s not claimed", repo.ErrInvalidState, stepID)
	}
	step.StartedAt = nil
	step.Updated = at
	return nil
}

func (s *StepStore) StoreResume(_ context.Context, tenantID, runID, stepID string, payload map[string]any, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	step, ok := s.steps[stepKey{tenantID, runID, stepID}]
	if !ok {
		return repo.ErrNotFound
	}
	if step.StartedAt != nil || step.Status != domain.StatusProcessing {
		return fmt.Errorf("%w: step %s already started", repo.ErrInvalidState, stepID)
	}
	step.SetContext(domain.ContextResume, maps.Clone(payload))
	step.Updated = at
	return nil
}

func (s *StepStore) Update(_ context.Context, step *domain.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stepKey{step.TenantID, step.RunID, step.StepID}
	current, ok := s.steps[key]
	if !ok {
		return repo.ErrNotFound
	}
	if current.Status != domain.StatusProcessing {
		return fmt.Errorf("%w: step %s already finished (%s)", repo.ErrInvalidState, step.StepID, current.Status)
	}
	s.steps[key] = cloneStep(step)
	return nil
}

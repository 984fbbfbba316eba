package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
)

type runKey struct{ tenant, id string }

// RunStore: in-memory хранилище runs.
type RunStore struct {
	mu   sync.RWMutex
	runs map[runKey]*domain.Run
}

// NewRunStore создаёт пустой RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[runKey]*domain.Run)}
}

func (s *RunStore) Create(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := runKey{run.TenantID, run.ID}
	if _, ok := s.runs[key]; ok {
		return fmt.Errorf("%w: run %s", repo.ErrAlreadyExists, run.ID)
	}
	s.runs[key] = cloneRun(run)
	return nil
}

func (s *RunStore) GetByID(_ context.Context, tenantID, id string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runKey{tenantID, id}]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return cloneRun(run), nil
}

func (s *RunStore) Update(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := runKey{run.TenantID, run.ID}
	if _, ok := s.runs[key]; !ok {
		return repo.ErrNotFound
	}
	s.runs[key] = cloneRun(run)
	return nil
}

func (s *RunStore) ListByCancelationToken(_ context.Context, tenantID, token string) ([]domain.Run, error) {
	if token == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Run
	for key, run := range s.runs {
		if key.tenant == tenantID && run.CancelationToken == token {
			result = append(result, *cloneRun(run))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

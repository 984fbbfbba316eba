package memstore

import (
	"context"
	"sync"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
)

type refKey struct{ tenant, name, run string }

// RefStore: in-memory индекс ref.
type RefStore struct {
	mu   sync.RWMutex
	refs map[refKey]domain.StepRef
}

// NewRefStore создаёт пустой RefStore.
func NewRefStore() *RefStore {
	return &RefStore{refs: make(map[refKey]domain.StepRef)}
}

func (s *RefStore) Create(_ context.Context, ref domain.StepRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := refKey{ref.TenantID, ref.Name, ref.RunID}
	if _, ok := s.refs[key]; ok {
		return nil
	}
	s.refs[key] = ref
	return nil
}

func (s *RefStore) GetLatest(_ context.Context, tenantID, name string) (*domain.StepRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.StepRef
	for key, ref := range s.refs {
		if key.tenant != tenantID || key.name != name {
			continue
		}
		if latest == nil || ref.CreatedAt.After(latest.CreatedAt) {
			r := ref
			latest = &r
		}
	}
	if latest == nil {
		return nil, repo.ErrNotFound
	}
	return latest, nil
}

// Len возвращает количество записей.
func (s *RefStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.refs)
}

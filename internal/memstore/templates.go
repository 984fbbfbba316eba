package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
)

type templateKey struct{ tenant, id string }

// TemplateStore: in-memory хранилище шаблонов.
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[templateKey]domain.WorkflowTemplate
}

// NewTemplateStore создаёт пустой TemplateStore.
func NewTemplateStore() *TemplateStore {
	return &TemplateStore{templates: make(map[templateKey]domain.WorkflowTemplate)}
}

func (s *TemplateStore) Upsert(_ context.Context, tmpl *domain.WorkflowTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := templateKey{tmpl.TenantID, tmpl.ID}
	if existing, ok := s.templates[key]; ok {
		tmpl.Version = existing.Version + 1
		tmpl.CreatedAt = existing.CreatedAt
	} else {
		tmpl.Version = 1
		tmpl.CreatedAt = tmpl.UpdatedAt
	}

	stored := *tmpl
	stored.Steps = slices.Clone(tmpl.Steps)
	s.templates[key] = stored
	return nil
}

func (s *TemplateStore) GetByID(_ context.Context, tenantID, id string) (*domain.WorkflowTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tmpl, ok := s.templates[templateKey{tenantID, id}]
	if !ok {
		return nil, repo.ErrNotFound
	}
	tmpl.Steps = slices.Clone(tmpl.Steps)
	return &tmpl, nil
}

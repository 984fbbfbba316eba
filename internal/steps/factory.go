package steps

import (
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
)

// Factory строит Step из DeclarativeStep.
//
// Генерируются только StepID, Created, Updated, Status и TenantID.
// Ref, IdempotencyKey, IdempotencyExpiry и Data переносятся без изменений.
type Factory struct {
	tenantID string
	registry *Registry
	now      func() time.Time
	newID    func() string
}

// FactoryConfig: конфигурация Factory.
type FactoryConfig struct {
	TenantID string
	Registry *Registry        // default: DefaultRegistry()
	Clock    func() time.Time // default: time.Now
	NewID    func() string    // default: uuid.NewString
}

// NewFactory создаёт фабрику шагов для tenant.
func NewFactory(cfg FactoryConfig) *Factory {
	registry := cfg.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Factory{
		tenantID: cfg.TenantID,
		registry: registry,
		now:      clock,
		newID:    newID,
	}
}

// Create строит шаг run. Неизвестное действие: ErrUnknownAction.
func (f *Factory) Create(runID string, def domain.DeclarativeStep) (*domain.Step, error) {
	action, err := f.registry.Decode(def.Action, def.Fields)
	if err != nil {
		return nil, err
	}

	now := f.now().UTC()
	return &domain.Step{
		TenantID:          f.tenantID,
		RunID:             runID,
		StepID:            f.newID(),
		Action:            action,
		Status:            domain.StatusProcessing,
		Created:           now,
		Updated:           now,
		Ref:               def.Ref,
		IdempotencyKey:    def.IdempotencyKey,
		IdempotencyExpiry: def.IdempotencyExpiry,
		Data:              maps.Clone(def.Data),
	}, nil
}

// CreateAll строит все шаги run, выставляя Position по порядку определений.
func (f *Factory) CreateAll(runID string, defs []domain.DeclarativeStep) ([]*domain.Step, error) {
	result := make([]*domain.Step, 0, len(defs))
	for i, def := range defs {
		step, err := f.Create(runID, def)
		if err != nil {
			return nil, err
		}
		step.Position = i
		result = append(result, step)
	}
	return result, nil
}

package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/delivery"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/steps"
)

// RunStore: хранилище runs.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Run, error)
	Update(ctx context.Context, run *domain.Run) error
	ListByCancelationToken(ctx context.Context, tenantID, token string) ([]domain.Run, error)
}

// StepStore: хранилище шагов.
type StepStore interface {
	CreateBatch(ctx context.Context, steps []*domain.Step) error
	GetByID(ctx context.Context, tenantID, runID, stepID string) (*domain.Step, error)
	ListByRun(ctx context.Context, tenantID, runID string) ([]domain.Step, error)
	Claim(ctx context.Context, tenantID, runID, stepID string, at time.Time) error
	Unclaim(ctx context.Context, tenantID, runID, stepID string, at time.Time) error
	StoreResume(ctx context.Context, tenantID, runID, stepID string, payload map[string]any, at time.Time) error

	// Update записывает только шаги в processing; иначе repo.ErrInvalidState.
	Update(ctx context.Context, step *domain.Step) error
}

// TemplateStore: хранилище шаблонов.
type TemplateStore interface {
	GetByID(ctx context.Context, tenantID, id string) (*domain.WorkflowTemplate, error)
}

// RefIndex: индекс ref шагов.
type RefIndex interface {
	CreateRefs(ctx context.Context, steps []*domain.Step) error
	Lookup(ctx context.Context, tenantID, ref string) (runID, stepID string, err error)
}

// Timers: таймеры delay и wait.
type Timers interface {
	StartDelay(ctx context.Context, tenantID, runID, stepID string, wakeAt time.Time) error
	StartWaitTimeout(ctx context.Context, tenantID, runID, stepID string, wakeAt time.Time) error
	CancelTimer(ctx context.Context, tenantID, id string) error
}

// Publisher публикует триггеры выполнения шагов.
type Publisher interface {
	PublishEnqueueStep(ctx context.Context, msg domain.EnqueueStep) error
}

// Orchestrator продвигает runs по шагам.
//
// Каждый метод соответствует одному триггеру и работает только через
// хранилища: состояние между вызовами в памяти не держится.
// Устаревшие триггеры (run завершён, шаг уже выполнен) поглощаются
// с диагностическим логом.
type Orchestrator struct {
	runs      RunStore
	steps     StepStore
	templates TemplateStore
	refs      RefIndex
	timers    Timers
	publisher Publisher
	sender    delivery.Sender
	registry  *steps.Registry

	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Config: конфигурация Orchestrator.
type Config struct {
	Runs      RunStore
	Steps     StepStore
	Templates TemplateStore
	Refs      RefIndex
	Timers    Timers
	Publisher Publisher
	Sender    delivery.Sender

	Registry *steps.Registry  // default: steps.DefaultRegistry()
	Clock    func() time.Time // default: time.Now
	NewID    func() string    // default: uuid.NewString
	Logger   *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	registry := cfg.Registry
	if registry == nil {
		registry = steps.DefaultRegistry()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		runs:      cfg.Runs,
		steps:     cfg.Steps,
		templates: cfg.Templates,
		refs:      cfg.Refs,
		timers:    cfg.Timers,
		publisher: cfg.Publisher,
		sender:    cfg.Sender,
		registry:  registry,
		now:       clock,
		newID:     newID,
		logger:    logger,
	}
}

// factory возвращает фабрику шагов для tenant.
func (o *Orchestrator) factory(tenantID string) *steps.Factory {
	return steps.NewFactory(steps.FactoryConfig{
		TenantID: tenantID,
		Registry: o.registry,
		Clock:    o.now,
		NewID:    o.newID,
	})
}

// GetRun возвращает run и его шаги.
func (o *Orchestrator) GetRun(ctx context.Context, tenantID, runID string) (*RunState, error) {
	return o.loadState(ctx, tenantID, runID)
}

package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/lock"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/scheduler"
	"github.com/shaiso/Relay/internal/steps"
)

// Publisher публикует триггеры в очередь.
type Publisher interface {
	PublishInvokeRun(ctx context.Context, invoke domain.InvokeRun) error
	PublishResumeRef(ctx context.Context, resume domain.ResumeRef, eventID string) error
	PublishCancelRuns(ctx context.Context, cancel domain.CancelRuns) error
}

// TemplateStore: хранилище шаблонов workflow.
type TemplateStore interface {
	Upsert(ctx context.Context, tmpl *domain.WorkflowTemplate) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.WorkflowTemplate, error)
}

// Schedules управляет schedule-таймерами.
type Schedules interface {
	ArmSchedule(ctx context.Context, spec scheduler.ScheduleSpec) (*domain.Timer, error)
	SetScheduleEnabled(ctx context.Context, tenantID, itemID string, enabled bool) error
	RemoveSchedule(ctx context.Context, tenantID, itemID string) error
}

// RunReader читает состояние run.
type RunReader interface {
	GetRun(ctx context.Context, tenantID, runID string) (*orchestrator.RunState, error)
}

// Locker выполняет функцию под распределённой блокировкой.
type Locker interface {
	WithLock(ctx context.Context, key string, mode lock.Mode, fn func(context.Context) error) error
}

// Handler: точка входа триггеров по HTTP.
//
// API не выполняет шаги сам: запуски, события и отмены публикуются в очередь
// и обрабатываются relay-engine.
type Handler struct {
	publisher     Publisher
	templates     TemplateStore
	schedules     Schedules
	runs          RunReader
	locker        Locker
	registry      *steps.Registry
	defaultTenant string
	newID         func() string
	logger        *slog.Logger
}

// Config: конфигурация для создания Handler.
type Config struct {
	Publisher     Publisher
	Templates     TemplateStore
	Schedules     Schedules
	Runs          RunReader
	Locker        Locker // блокировка с purpose "template-rollout"
	Registry      *steps.Registry
	DefaultTenant string // tenant для запросов без X-Tenant-ID
	NewID         func() string
	Logger        *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	registry := cfg.Registry
	if registry == nil {
		registry = steps.DefaultRegistry()
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		publisher:     cfg.Publisher,
		templates:     cfg.Templates,
		schedules:     cfg.Schedules,
		runs:          cfg.Runs,
		locker:        cfg.Locker,
		registry:      registry,
		defaultTenant: cfg.DefaultTenant,
		newID:         newID,
		logger:        logger,
	}
}

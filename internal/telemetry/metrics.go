package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики Relay. Экспортируются на /metrics каждого сервиса.
var (
	// TriggersTotal: записи потоков по consumer и результату
	// (processed, skipped, failed).
	TriggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "triggers_total",
		Help:      "Stream records handled, by consumer and result.",
	}, []string{"consumer", "result"})

	// StepsTotal: переходы шагов по действию и статусу.
	StepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "steps_total",
		Help:      "Step transitions, by action and status.",
	}, []string{"action", "status"})

	// RunsTotal: переходы runs по статусу (started, completed, failed, canceled).
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "runs_total",
		Help:      "Run transitions, by status.",
	}, []string{"status"})

	// TimersTotal: события таймеров по виду (armed, fired, ignored, canceled, purged).
	TimersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "timers_total",
		Help:      "Timer events, by kind and event.",
	}, []string{"kind", "event"})

	// SweepDuration: длительность одного прохода sweeper.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "relay",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of a single timer sweep pass.",
		Buckets:   prometheus.DefBuckets,
	})
)

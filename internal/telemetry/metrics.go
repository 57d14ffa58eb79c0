package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики движка. Регистрируются в default registry и отдаются
// через /metrics (promhttp) в main.
var (
	// InstancesStarted — количество запущенных инстансов по workflow.
	InstancesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowline_instances_started_total",
		Help: "Total workflow instances started",
	}, []string{"workflow"})

	// InstancesFinished — количество завершённых инстансов по workflow
	// и терминальному состоянию (COMPLETED/FAILED).
	InstancesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowline_instances_finished_total",
		Help: "Total workflow instances finished, by terminal state",
	}, []string{"workflow", "state"})

	// AdmissionRejected — отказы в допуске (persistent-режимы):
	// reason ∈ {busy, wait_timeout}.
	AdmissionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowline_admission_rejected_total",
		Help: "Trigger firings rejected by the start-method policy",
	}, []string{"workflow", "reason"})

	// StepRetries — количество повторных попыток шагов по workflow.
	StepRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowline_step_retries_total",
		Help: "Total step retry attempts",
	}, []string{"workflow"})

	// StepDuration — длительность выполнения шага по stype.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flowline_step_duration_seconds",
		Help:    "Step handler execution duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"stype"})

	// TriggerFirings — срабатывания триггеров по workflow и виду
	// (http/time/event).
	TriggerFirings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowline_trigger_firings_total",
		Help: "Total trigger firings, by trigger kind",
	}, []string{"workflow", "kind"})
)

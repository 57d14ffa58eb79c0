package domain

import (
	"time"

	"github.com/google/uuid"
)

// InstanceState — состояние инстанса workflow.
//
// Жизненный цикл:
//
//	CREATED → RUNNING → COMPLETED
//	                  ↘ FAILED
//	          RUNNING ⇄ SUSPENDED (wait-for-event)
//
// Из COMPLETED и FAILED переходов нет.
type InstanceState string

const (
	// InstanceCreated — инстанс создан, выполнение ещё не началось.
	InstanceCreated InstanceState = "CREATED"

	// InstanceRunning — инстанс выполняется.
	InstanceRunning InstanceState = "RUNNING"

	// InstanceSuspended — инстанс приостановлен на wait-for-event
	// и ждёт внешнего resume. Под-состояние RUNNING: слот workflow
	// остаётся занятым.
	InstanceSuspended InstanceState = "SUSPENDED"

	// InstanceCompleted — все ветки достигли терминальных шагов.
	InstanceCompleted InstanceState = "COMPLETED"

	// InstanceFailed — шаг исчерпал retry или переход невозможен.
	InstanceFailed InstanceState = "FAILED"
)

// IsTerminal возвращает true для финальных состояний.
func (s InstanceState) IsTerminal() bool {
	return s == InstanceCompleted || s == InstanceFailed
}

// IsActive возвращает true, если инстанс занимает слот workflow.
func (s InstanceState) IsActive() bool {
	return s == InstanceRunning || s == InstanceSuspended
}

// WorkflowInstance — один запуск WorkflowDefinition.
//
// Инстанс создаётся срабатыванием триггера, мутируется исключительно
// движком пока RUNNING и становится неизменяемым после перехода
// в COMPLETED/FAILED (история остаётся append-only).
type WorkflowInstance struct {
	// ID — уникальный идентификатор инстанса.
	ID uuid.UUID `json:"id"`

	// Workflow — имя workflow из definition.
	Workflow string `json:"workflow"`

	// Generation — поколение definition, на котором стартовал инстанс.
	Generation int `json:"generation"`

	// CurrentStepID — ID выполняемого (или приостановленного) шага.
	CurrentStepID string `json:"current_step_id,omitempty"`

	// State — текущее состояние.
	State InstanceState `json:"state"`

	// LastError — текст последней ошибки (для FAILED).
	LastError string `json:"last_error,omitempty"`

	// StartedAt — время перехода в RUNNING.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время перехода в терминальное состояние.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания инстанса.
	CreatedAt time.Time `json:"created_at"`
}

// NewInstance создаёт инстанс в состоянии CREATED.
func NewInstance(workflow string, generation int) *WorkflowInstance {
	return &WorkflowInstance{
		ID:         uuid.New(),
		Workflow:   workflow,
		Generation: generation,
		State:      InstanceCreated,
		CreatedAt:  time.Now(),
	}
}

// Elapsed возвращает время выполнения: для завершённого инстанса —
// полную продолжительность, для выполняющегося — время с момента старта.
func (i *WorkflowInstance) Elapsed() time.Duration {
	if i.StartedAt == nil {
		return 0
	}
	if i.FinishedAt != nil {
		return i.FinishedAt.Sub(*i.StartedAt)
	}
	return time.Since(*i.StartedAt)
}

// IsFinished возвращает true, если инстанс завершён.
func (i *WorkflowInstance) IsFinished() bool {
	return i.State.IsTerminal()
}

// MarkRunning переводит инстанс в RUNNING.
// Повторный вызов (возврат из SUSPENDED) не сбрасывает StartedAt.
func (i *WorkflowInstance) MarkRunning() {
	if i.StartedAt == nil {
		now := time.Now()
		i.StartedAt = &now
	}
	i.State = InstanceRunning
}

// MarkSuspended переводит инстанс в SUSPENDED на шаге stepID.
func (i *WorkflowInstance) MarkSuspended(stepID string) {
	i.State = InstanceSuspended
	i.CurrentStepID = stepID
}

// MarkCompleted переводит инстанс в COMPLETED.
func (i *WorkflowInstance) MarkCompleted() {
	now := time.Now()
	i.State = InstanceCompleted
	i.FinishedAt = &now
}

// MarkFailed переводит инстанс в FAILED с текстом ошибки.
func (i *WorkflowInstance) MarkFailed(errText string) {
	now := time.Now()
	i.State = InstanceFailed
	i.FinishedAt = &now
	i.LastError = errText
}

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Flowline/internal/domain"
)

// PendingResume — запись о приостановленном wait-for-event шаге.
//
// Пока запись существует, внешний вызов resume может разбудить инстанс.
// Для persistent-режимов запись переживает рестарт процесса; ephemeral
// инстанс, потерявший процесс, не восстанавливается — это документированное
// ограничение, а не скрываемый дефект.
type PendingResume struct {
	// Workflow — имя workflow.
	Workflow string `json:"workflow"`

	// StepID — шаг wait-for-event, на котором приостановлен инстанс.
	StepID string `json:"step_id"`

	// InstanceID — приостановленный инстанс.
	InstanceID uuid.UUID `json:"instance_id"`

	// CreatedAt — время приостановки.
	CreatedAt time.Time `json:"created_at"`
}

// InstanceStore — хранилище инстансов (get/put-семантика).
type InstanceStore interface {
	// PutInstance сохраняет инстанс (insert или update по ID).
	PutInstance(ctx context.Context, inst *domain.WorkflowInstance) error

	// GetInstance возвращает инстанс по ID.
	// Возвращает ErrNotFound, если инстанс не существует.
	GetInstance(ctx context.Context, id uuid.UUID) (*domain.WorkflowInstance, error)

	// ListInstancesByState возвращает инстансы в заданном состоянии,
	// не более limit, в порядке создания.
	ListInstancesByState(ctx context.Context, state domain.InstanceState, limit int) ([]domain.WorkflowInstance, error)
}

// HistoryStore — хранилище журналов выполнения.
//
// Журнал append-only: записи только добавляются, порядок добавления
// сохраняется.
type HistoryStore interface {
	// AppendHistory добавляет запись в журнал инстанса.
	AppendHistory(ctx context.Context, instanceID uuid.UUID, e domain.HistoryEntry) error

	// ListHistory возвращает записи журнала в порядке добавления.
	ListHistory(ctx context.Context, instanceID uuid.UUID) ([]domain.HistoryEntry, error)
}

// ResumeStore — хранилище pending-resume записей.
type ResumeStore interface {
	// PutPendingResume сохраняет запись о приостановке.
	PutPendingResume(ctx context.Context, pr PendingResume) error

	// DeletePendingResume удаляет запись (после resume или отказа).
	DeletePendingResume(ctx context.Context, workflow, stepID string) error

	// ListPendingResumes возвращает все записи о приостановках.
	ListPendingResumes(ctx context.Context) ([]PendingResume, error)
}

// Store — комбинированное хранилище движка.
//
// Движку всё равно, что за ним стоит: Postgres (NewPostgres) для
// долговечности или память (NewMemory) для ephemeral-режимов и тестов.
type Store interface {
	InstanceStore
	HistoryStore
	ResumeStore
}

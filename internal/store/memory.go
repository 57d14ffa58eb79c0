package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/Flowline/internal/domain"
)

// Memory — хранилище в памяти процесса.
//
// Используется для тестов и для развёртываний без БД: ephemeral-режимы
// по определению не требуют долговечности, а для persistent-режимов
// потеря процесса означает потерю приостановок (см. PendingResume).
type Memory struct {
	mu        sync.RWMutex
	instances map[uuid.UUID]domain.WorkflowInstance
	order     []uuid.UUID
	history   map[uuid.UUID][]domain.HistoryEntry
	resumes   map[string]PendingResume
}

// NewMemory создаёт пустое хранилище в памяти.
func NewMemory() *Memory {
	return &Memory{
		instances: make(map[uuid.UUID]domain.WorkflowInstance),
		history:   make(map[uuid.UUID][]domain.HistoryEntry),
		resumes:   make(map[string]PendingResume),
	}
}

// PutInstance сохраняет копию инстанса.
func (m *Memory) PutInstance(ctx context.Context, inst *domain.WorkflowInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.instances[inst.ID]; !exists {
		m.order = append(m.order, inst.ID)
	}
	m.instances[inst.ID] = *inst
	return nil
}

// GetInstance возвращает копию инстанса по ID.
func (m *Memory) GetInstance(ctx context.Context, id uuid.UUID) (*domain.WorkflowInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: instance %s", ErrNotFound, id)
	}
	return &inst, nil
}

// ListInstancesByState возвращает инстансы в заданном состоянии.
func (m *Memory) ListInstancesByState(ctx context.Context, state domain.InstanceState, limit int) ([]domain.WorkflowInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.WorkflowInstance
	for _, id := range m.order {
		inst := m.instances[id]
		if inst.State != state {
			continue
		}
		out = append(out, inst)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// AppendHistory добавляет запись в журнал инстанса.
func (m *Memory) AppendHistory(ctx context.Context, instanceID uuid.UUID, e domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[instanceID] = append(m.history[instanceID], e)
	return nil
}

// ListHistory возвращает копию журнала инстанса в порядке добавления.
func (m *Memory) ListHistory(ctx context.Context, instanceID uuid.UUID) ([]domain.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.history[instanceID]
	out := make([]domain.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// PutPendingResume сохраняет запись о приостановке.
func (m *Memory) PutPendingResume(ctx context.Context, pr PendingResume) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumes[resumeKey(pr.Workflow, pr.StepID)] = pr
	return nil
}

// DeletePendingResume удаляет запись о приостановке.
func (m *Memory) DeletePendingResume(ctx context.Context, workflow, stepID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resumes, resumeKey(workflow, stepID))
	return nil
}

// ListPendingResumes возвращает все записи о приостановках.
func (m *Memory) ListPendingResumes(ctx context.Context) ([]PendingResume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]PendingResume, 0, len(m.resumes))
	for _, pr := range m.resumes {
		out = append(out, pr)
	}
	return out, nil
}

// resumeKey — ключ pending-resume записи.
func resumeKey(workflow, stepID string) string {
	return workflow + "/" + stepID
}

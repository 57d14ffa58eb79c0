package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Flowline/internal/domain"
)

func TestMemory_InstanceUpsert(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	inst := &domain.WorkflowInstance{
		ID:       uuid.New(),
		Workflow: "report",
		State:    domain.InstanceRunning,
	}
	if err := m.PutInstance(ctx, inst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Повторное сохранение обновляет, а не дублирует
	inst.State = domain.InstanceCompleted
	if err := m.PutInstance(ctx, inst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := m.GetInstance(ctx, inst.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != domain.InstanceCompleted {
		t.Errorf("expected COMPLETED, got %s", got.State)
	}

	// Хранится копия: мутация оригинала не видна
	inst.Workflow = "mutated"
	got, _ = m.GetInstance(ctx, inst.ID)
	if got.Workflow != "report" {
		t.Error("store must keep a copy of the instance")
	}
}

func TestMemory_GetInstanceNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.GetInstance(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_ListInstancesByState(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	states := []domain.InstanceState{
		domain.InstanceRunning,
		domain.InstanceSuspended,
		domain.InstanceSuspended,
		domain.InstanceCompleted,
	}
	ids := make([]uuid.UUID, len(states))
	for i, st := range states {
		ids[i] = uuid.New()
		if err := m.PutInstance(ctx, &domain.WorkflowInstance{ID: ids[i], Workflow: "w", State: st}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	suspended, err := m.ListInstancesByState(ctx, domain.InstanceSuspended, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(suspended) != 2 {
		t.Fatalf("expected 2 suspended instances, got %d", len(suspended))
	}
	// Порядок вставки сохраняется
	if suspended[0].ID != ids[1] || suspended[1].ID != ids[2] {
		t.Error("instances must be listed in insertion order")
	}

	// limit ограничивает выборку
	limited, err := m.ListInstancesByState(ctx, domain.InstanceSuspended, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 instance with limit, got %d", len(limited))
	}
}

func TestMemory_HistoryOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	id := uuid.New()

	for _, e := range []domain.HistoryEntry{
		{StepID: "A", State: domain.StepStatusStarted},
		{StepID: "A", State: domain.StepStatusCompleted},
		{StepID: "B", State: domain.StepStatusFailed, Error: "boom"},
	} {
		if err := m.AppendHistory(ctx, id, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	entries, err := m.ListHistory(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[2].Error != "boom" {
		t.Errorf("expected error text on last entry, got %q", entries[2].Error)
	}

	// Мутация возвращённого среза не трогает журнал
	entries[0].StepID = "mutated"
	again, _ := m.ListHistory(ctx, id)
	if again[0].StepID != "A" {
		t.Error("ListHistory must return a copy")
	}
}

func TestMemory_HistoryEmptyInstance(t *testing.T) {
	m := NewMemory()
	entries, err := m.ListHistory(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty history, got %d entries", len(entries))
	}
}

func TestMemory_PendingResumes(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first := PendingResume{
		Workflow:   "report",
		StepID:     "wait",
		InstanceID: uuid.New(),
		CreatedAt:  time.Now(),
	}
	if err := m.PutPendingResume(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Запись с тем же workflow/step перезаписывает предыдущую
	second := first
	second.InstanceID = uuid.New()
	if err := m.PutPendingResume(ctx, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list, err := m.ListPendingResumes(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 pending resume, got %d", len(list))
	}
	if list[0].InstanceID != second.InstanceID {
		t.Error("later put must win for the same workflow/step")
	}

	if err := m.DeletePendingResume(ctx, "report", "wait"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, _ = m.ListPendingResumes(ctx)
	if len(list) != 0 {
		t.Errorf("expected empty list after delete, got %d", len(list))
	}

	// Удаление несуществующей записи — не ошибка
	if err := m.DeletePendingResume(ctx, "report", "wait"); err != nil {
		t.Errorf("delete must be idempotent: %v", err)
	}
}

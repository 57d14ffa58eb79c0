package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shaiso/Flowline/internal/domain"
	"github.com/shaiso/Flowline/internal/steps"
)

func newExecutor(register func(r *steps.Registry)) *StepExecutor {
	registry := steps.NewRegistry()
	if register != nil {
		register(registry)
	}
	return New(registry, nil)
}

func TestExecute_Success(t *testing.T) {
	exec := newExecutor(func(r *steps.Registry) {
		r.Register("ok", steps.HandlerFunc(func(ctx context.Context, req *steps.Request) (*domain.FlowMessage, error) {
			return domain.CompletedMessage(req.Message.Payload, "done"), nil
		}))
	})

	step := &domain.Step{ID: "A", Type: "ok", Enabled: true}
	hist := domain.NewHistory()
	ec := domain.NewExecutionContext(nil)

	out := exec.Execute(context.Background(), "wf", step, domain.NewMessage("in"), ec, hist)

	if out.IsFailed() {
		t.Fatalf("unexpected failure: %s", out.ErrorText)
	}
	if out.OutputText != "done" {
		t.Errorf("expected output text done, got %q", out.OutputText)
	}

	// Одна попытка: STARTED + COMPLETED
	entries := hist.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	if entries[0].State != domain.StepStatusStarted || entries[1].State != domain.StepStatusCompleted {
		t.Errorf("expected STARTED then COMPLETED, got %s then %s", entries[0].State, entries[1].State)
	}
}

func TestExecute_RetryBound(t *testing.T) {
	var calls int
	exec := newExecutor(func(r *steps.Registry) {
		r.Register("flaky", steps.HandlerFunc(func(ctx context.Context, req *steps.Request) (*domain.FlowMessage, error) {
			calls++
			return nil, errors.New("boom")
		}))
	})

	// max_retries=2 → ровно 3 вызова обработчика
	step := &domain.Step{ID: "B", Type: "flaky", Enabled: true, MaxRetries: 2}
	hist := domain.NewHistory()

	out := exec.Execute(context.Background(), "wf", step, domain.NewMessage(nil), domain.NewExecutionContext(nil), hist)

	if calls != 3 {
		t.Errorf("expected 3 handler invocations, got %d", calls)
	}
	if !out.IsFailed() {
		t.Fatal("expected FAILED message after retry exhaustion")
	}
	if !strings.Contains(out.ErrorText, "after 3 attempts") {
		t.Errorf("error text must mention attempt count: %q", out.ErrorText)
	}

	// Журнал: STARTED на каждую попытку + финальный FAILED
	entries := hist.Entries()
	if len(entries) != 4 {
		t.Fatalf("expected 4 history entries, got %d", len(entries))
	}
	for i := 0; i < 3; i++ {
		if entries[i].State != domain.StepStatusStarted {
			t.Errorf("entry %d: expected STARTED, got %s", i, entries[i].State)
		}
	}
	if entries[3].State != domain.StepStatusFailed {
		t.Errorf("expected FAILED last, got %s", entries[3].State)
	}
}

func TestExecute_SucceedsOnRetry(t *testing.T) {
	var calls int
	exec := newExecutor(func(r *steps.Registry) {
		r.Register("second-time", steps.HandlerFunc(func(ctx context.Context, req *steps.Request) (*domain.FlowMessage, error) {
			calls++
			if calls < 2 {
				return nil, errors.New("transient")
			}
			return domain.CompletedMessage("ok", ""), nil
		}))
	})

	step := &domain.Step{ID: "C", Type: "second-time", Enabled: true, MaxRetries: 3}
	hist := domain.NewHistory()

	out := exec.Execute(context.Background(), "wf", step, domain.NewMessage(nil), domain.NewExecutionContext(nil), hist)

	if out.IsFailed() {
		t.Fatalf("unexpected failure: %s", out.ErrorText)
	}
	if calls != 2 {
		t.Errorf("expected 2 invocations, got %d", calls)
	}

	// STARTED, STARTED, COMPLETED — неудачная попытка видна в журнале
	entries := hist.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(entries))
	}
	if entries[2].State != domain.StepStatusCompleted {
		t.Errorf("expected COMPLETED last, got %s", entries[2].State)
	}
}

func TestExecute_FailedMessageCountsAsFailure(t *testing.T) {
	// Обработчик возвращает FAILED-сообщение без Go-ошибки:
	// retry-политика применяется так же
	var calls int
	exec := newExecutor(func(r *steps.Registry) {
		r.Register("soft-fail", steps.HandlerFunc(func(ctx context.Context, req *steps.Request) (*domain.FlowMessage, error) {
			calls++
			return domain.FailedMessage(nil, "declined"), nil
		}))
	})

	step := &domain.Step{ID: "D", Type: "soft-fail", Enabled: true, MaxRetries: 1}
	out := exec.Execute(context.Background(), "wf", step, domain.NewMessage(nil), domain.NewExecutionContext(nil), domain.NewHistory())

	if calls != 2 {
		t.Errorf("expected 2 invocations, got %d", calls)
	}
	if !out.IsFailed() {
		t.Fatal("expected FAILED message")
	}
	if !strings.Contains(out.ErrorText, "declined") {
		t.Errorf("error text must carry handler error: %q", out.ErrorText)
	}
}

func TestExecute_HandlerNotFound(t *testing.T) {
	exec := newExecutor(nil)

	step := &domain.Step{ID: "E", Type: "ghost", Enabled: true, MaxRetries: 5}
	hist := domain.NewHistory()

	out := exec.Execute(context.Background(), "wf", step, domain.NewMessage(nil), domain.NewExecutionContext(nil), hist)

	if !out.IsFailed() {
		t.Fatal("expected FAILED message for unknown handler")
	}
	// Отсутствие обработчика не ретраится
	if hist.Len() != 1 {
		t.Errorf("expected single FAILED entry, got %d", hist.Len())
	}
}

func TestExecute_MethodOverride(t *testing.T) {
	exec := newExecutor(func(r *steps.Registry) {
		r.Register("custom.method", steps.HandlerFunc(func(ctx context.Context, req *steps.Request) (*domain.FlowMessage, error) {
			return domain.CompletedMessage(nil, "custom"), nil
		}))
	})

	// params.method имеет приоритет над stype
	step := &domain.Step{
		ID:      "F",
		Type:    "function-step",
		Enabled: true,
		Params:  map[string]any{"method": "custom.method"},
	}

	out := exec.Execute(context.Background(), "wf", step, domain.NewMessage(nil), domain.NewExecutionContext(nil), domain.NewHistory())
	if out.IsFailed() {
		t.Fatalf("unexpected failure: %s", out.ErrorText)
	}
	if out.OutputText != "custom" {
		t.Errorf("expected custom handler output, got %q", out.OutputText)
	}
}

func TestExecute_NilMessageNormalized(t *testing.T) {
	exec := newExecutor(func(r *steps.Registry) {
		r.Register("silent", steps.HandlerFunc(func(ctx context.Context, req *steps.Request) (*domain.FlowMessage, error) {
			return nil, nil
		}))
	})

	step := &domain.Step{ID: "G", Type: "silent", Enabled: true}
	out := exec.Execute(context.Background(), "wf", step, domain.NewMessage("payload"), domain.NewExecutionContext(nil), domain.NewHistory())

	if out == nil {
		t.Fatal("executor must never return nil message")
	}
	if out.Status != domain.StepStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", out.Status)
	}
	if out.Payload != "payload" {
		t.Errorf("nil result must pass the input payload through, got %v", out.Payload)
	}
}

func TestExecute_ContextVisibleToHandler(t *testing.T) {
	exec := newExecutor(func(r *steps.Registry) {
		r.Register("writer", steps.HandlerFunc(func(ctx context.Context, req *steps.Request) (*domain.FlowMessage, error) {
			req.Context.Set("writer.value", 42)
			return domain.CompletedMessage(nil, ""), nil
		}))
		r.Register("reader", steps.HandlerFunc(func(ctx context.Context, req *steps.Request) (*domain.FlowMessage, error) {
			v, ok := req.Context.Lookup("writer.value")
			if !ok {
				return nil, fmt.Errorf("value not found in execution context")
			}
			return domain.CompletedMessage(v, ""), nil
		}))
	})

	ec := domain.NewExecutionContext(nil)
	hist := domain.NewHistory()

	out := exec.Execute(context.Background(), "wf", &domain.Step{ID: "W", Type: "writer", Enabled: true}, domain.NewMessage(nil), ec, hist)
	if out.IsFailed() {
		t.Fatalf("writer failed: %s", out.ErrorText)
	}

	out = exec.Execute(context.Background(), "wf", &domain.Step{ID: "R", Type: "reader", Enabled: true}, out, ec, hist)
	if out.IsFailed() {
		t.Fatalf("reader failed: %s", out.ErrorText)
	}
	if out.Payload != 42 {
		t.Errorf("expected payload 42 from context, got %v", out.Payload)
	}
}

package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Flowline/internal/domain"
	"github.com/shaiso/Flowline/internal/steps"
	"github.com/shaiso/Flowline/internal/telemetry"
)

// StepExecutor выполняет один шаг: находит обработчик, вызывает его,
// применяет retry-политику шага и записывает исход в журнал.
//
// Retry — фиксированная задержка retry_delay между попытками,
// без exponential backoff: ядру не нужна политика полноценного
// планировщика задач. Общее число вызовов обработчика равно
// max_retries + 1.
//
// Ошибки выполнения никогда не «выбрасываются» наружу: исчерпание
// retry превращается в FlowMessage со статусом FAILED и заполненным
// error_text, который движок трактует как фатальный для инстанса.
type StepExecutor struct {
	registry *steps.Registry
	logger   *slog.Logger
}

// New создаёт StepExecutor поверх реестра обработчиков.
func New(registry *steps.Registry, logger *slog.Logger) *StepExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &StepExecutor{
		registry: registry,
		logger:   logger,
	}
}

// Execute выполняет шаг и возвращает его выходное сообщение.
//
// В журнал пишется STARTED-запись на каждую попытку (со снимком
// payload), затем COMPLETED с результатом либо FAILED с ошибкой.
func (e *StepExecutor) Execute(ctx context.Context, workflow string, step *domain.Step, in *domain.FlowMessage, ec *domain.ExecutionContext, hist *domain.History) *domain.FlowMessage {
	key := step.HandlerKey()

	handler, err := e.registry.Get(key)
	if err != nil {
		// Отсутствие обработчика — ошибка данных, не паника:
		// инстанс должен завершиться в инспектируемом состоянии.
		hist.Append(domain.HistoryEntry{
			StepID:  step.ID,
			State:   domain.StepStatusFailed,
			Error:   err.Error(),
			Payload: in.Payload,
		})
		return domain.FailedMessage(in.Payload, err.Error())
	}

	req := &steps.Request{
		Step:    step,
		Message: in,
		Context: ec,
	}

	attempts := step.MaxRetries + 1
	delay := time.Duration(step.RetryDelayMs) * time.Millisecond

	var out *domain.FlowMessage
	var execErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		started := time.Now()

		hist.Append(domain.HistoryEntry{
			StepID:  step.ID,
			State:   domain.StepStatusStarted,
			Payload: in.Payload,
		})

		out, execErr = handler.Execute(ctx, req)
		elapsed := time.Since(started)
		telemetry.StepDuration.WithLabelValues(step.Type).Observe(elapsed.Seconds())

		if execErr == nil && (out == nil || !out.IsFailed()) {
			if out == nil {
				out = domain.CompletedMessage(in.Payload, "")
			}
			if out.Status == domain.StepStatusUnknown {
				out.Status = domain.StepStatusCompleted
			}

			hist.Append(domain.HistoryEntry{
				StepID:     step.ID,
				State:      out.Status,
				Elapsed:    elapsed,
				OutputText: out.OutputText,
				Payload:    out.Payload,
			})

			e.logger.Debug("step completed",
				"workflow", workflow,
				"step_id", step.ID,
				"attempt", attempt,
				"elapsed", elapsed,
			)
			return out
		}

		errText := errorText(out, execErr)
		e.logger.Warn("step attempt failed",
			"workflow", workflow,
			"step_id", step.ID,
			"attempt", attempt,
			"error", errText,
		)

		if attempt == attempts {
			break
		}

		telemetry.StepRetries.WithLabelValues(workflow).Inc()

		// Фиксированная задержка с учётом context
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return e.fail(step, in, hist, fmt.Sprintf("step %s cancelled: %v", step.ID, ctx.Err()))
			}
		}
	}

	return e.fail(step, in, hist, fmt.Sprintf("step %s failed after %d attempts: %s", step.ID, attempts, errorText(out, execErr)))
}

// fail записывает FAILED-запись и возвращает FAILED-сообщение.
func (e *StepExecutor) fail(step *domain.Step, in *domain.FlowMessage, hist *domain.History, errText string) *domain.FlowMessage {
	hist.Append(domain.HistoryEntry{
		StepID:  step.ID,
		State:   domain.StepStatusFailed,
		Error:   errText,
		Payload: in.Payload,
	})
	return domain.FailedMessage(in.Payload, errText)
}

// errorText извлекает текст ошибки из результата попытки.
func errorText(out *domain.FlowMessage, execErr error) string {
	if execErr != nil {
		return execErr.Error()
	}
	if out != nil && out.ErrorText != "" {
		return out.ErrorText
	}
	return "handler returned FAILED message"
}

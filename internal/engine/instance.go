package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Flowline/internal/domain"
	"github.com/shaiso/Flowline/internal/store"
	"github.com/shaiso/Flowline/internal/telemetry"
)

// slot — точка сериализации persistent-режимов: токен ёмкости 1.
// Токен в канале означает, что workflow свободен.
type slot struct {
	token chan struct{}

	mu      sync.RWMutex
	current *Instance
}

func newSlot() *slot {
	s := &slot{token: make(chan struct{}, 1)}
	s.token <- struct{}{}
	return s
}

// acquire забирает токен по политике метода запуска.
//
// Порядок важен: сначала неблокирующая попытка — при свободном слоте
// допуск не зависит от метода и max_wait.
func (s *slot) acquire(ctx context.Context, method domain.StartMethod, maxWait time.Duration) error {
	select {
	case <-s.token:
		return nil
	default:
	}

	if method == domain.StartPersistentNonBlocking {
		return ErrInstanceRunning
	}
	if maxWait <= 0 {
		return ErrWaitTimeout
	}

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case <-s.token:
		return nil
	case <-timer.C:
		return ErrWaitTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tryAcquire забирает токен без ожидания.
func (s *slot) tryAcquire() bool {
	select {
	case <-s.token:
		return true
	default:
		return false
	}
}

// release возвращает токен. Идемпотентен.
func (s *slot) release() {
	select {
	case s.token <- struct{}{}:
	default:
	}
}

func (s *slot) setCurrent(in *Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = in
}

// currentInstance — последний допущенный инстанс. Остаётся доступным
// после завершения (для stats) до следующего допуска.
func (s *slot) currentInstance() *Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Instance — живой хендл одного запуска workflow.
//
// Поля жизненного цикла защищены мьютексом; журнал и контекст
// конкурентно-безопасны сами по себе.
type Instance struct {
	def       *domain.WorkflowDefinition
	ephemeral bool

	ec      *domain.ExecutionContext
	history *domain.History
	done    chan struct{}

	mu         sync.RWMutex
	rec        *domain.WorkflowInstance
	dispatched map[string]bool
	flushed    int
}

// newInstance создаёт инстанс в состоянии CREATED.
func newInstance(def *domain.WorkflowDefinition, generation int) *Instance {
	return &Instance{
		def:        def,
		ephemeral:  def.EffectiveStartMethod() == domain.StartEphemeral,
		ec:         domain.NewExecutionContext(def),
		history:    domain.NewHistory(),
		done:       make(chan struct{}),
		rec:        domain.NewInstance(def.Name, generation),
		dispatched: make(map[string]bool),
	}
}

// restoreInstance восстанавливает инстанс из хранилища после рестарта.
// Журнал переносится целиком; шаги с терминальными записями считаются
// уже диспатченными, чтобы fan-out не выполнил их повторно.
func restoreInstance(def *domain.WorkflowDefinition, generation int, stored *domain.WorkflowInstance, entries []domain.HistoryEntry) *Instance {
	rec := *stored
	if rec.Generation == 0 {
		rec.Generation = generation
	}

	in := &Instance{
		def:        def,
		ephemeral:  def.EffectiveStartMethod() == domain.StartEphemeral,
		ec:         domain.NewExecutionContext(def),
		history:    domain.NewHistory(),
		done:       make(chan struct{}),
		rec:        &rec,
		dispatched: make(map[string]bool),
	}

	for _, e := range entries {
		in.history.Append(e)
		if e.State.IsTerminal() {
			in.dispatched[e.StepID] = true
		}
	}
	in.flushed = len(entries)
	return in
}

// ID возвращает идентификатор инстанса.
func (in *Instance) ID() uuid.UUID {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.rec.ID
}

// Workflow возвращает имя workflow.
func (in *Instance) Workflow() string {
	return in.def.Name
}

// Done закрывается при переходе инстанса в терминальное состояние.
func (in *Instance) Done() <-chan struct{} {
	return in.done
}

// State возвращает текущее состояние.
func (in *Instance) State() domain.InstanceState {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.rec.State
}

// Snapshot возвращает копию записи инстанса.
func (in *Instance) Snapshot() domain.WorkflowInstance {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return *in.rec
}

// History возвращает журнал выполнения.
func (in *Instance) History() *domain.History {
	return in.history
}

// Context возвращает ExecutionContext инстанса.
func (in *Instance) Context() *domain.ExecutionContext {
	return in.ec
}

func (in *Instance) markRunning(stepID string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.rec.MarkRunning()
	if stepID != "" {
		in.rec.CurrentStepID = stepID
	}
}

func (in *Instance) markSuspended(stepID string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.rec.MarkSuspended(stepID)
}

func (in *Instance) markFinished(errText string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if errText != "" {
		in.rec.MarkFailed(errText)
	} else {
		in.rec.MarkCompleted()
	}
}

func (in *Instance) setCurrentStep(stepID string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.rec.CurrentStepID = stepID
}

// markDispatched отмечает шаг и сообщает, был ли он уже диспатчен.
// Fan-out доставляет шагу ровно одно сообщение — от первой достигшей
// его ветки.
func (in *Instance) markDispatched(stepID string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.dispatched[stepID] {
		return false
	}
	in.dispatched[stepID] = true
	return true
}

// hop — единица run-цикла: шаг и входное сообщение, произведённое
// веткой, которая его запланировала.
type hop struct {
	step *domain.Step
	msg  *domain.FlowMessage
}

// run ведёт инстанс по графу от entry до терминального состояния.
//
// Очередь хопов обходится в ширину: шаг выполняется, его выходное
// сообщение раздаётся переходам (с учётом динамического переопределения
// next_step_ids), каждый следующий шаг планируется не более одного раза.
func (e *Engine) run(in *Instance, sl *slot, entry *domain.Step, msg *domain.FlowMessage) {
	ctx := e.runCtx
	log := telemetry.WithInstanceID(telemetry.WithWorkflow(e.logger, in.Workflow()), in.ID().String())

	in.markRunning(entry.ID)
	in.markDispatched(entry.ID)
	e.persistInstance(ctx, in)
	e.publishEvent(ctx, "instance.started", in)
	log.Info("instance started", "entry_step", entry.ID)

	queue := []hop{{step: entry, msg: msg}}

	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		step := h.step
		in.setCurrentStep(step.ID)

		// Отключённый шаг пропускается, его переходы выполняются
		// с входным сообщением без изменений.
		if !step.Enabled {
			in.history.Append(domain.HistoryEntry{
				StepID:     step.ID,
				State:      domain.StepStatusSkipped,
				OutputText: "step disabled",
				Payload:    h.msg.Payload,
			})
			e.flushHistory(ctx, in)

			var failed bool
			queue, failed = e.schedule(ctx, in, sl, step, h.msg, queue)
			if failed {
				return
			}
			continue
		}

		var out *domain.FlowMessage
		switch step.Type {
		case domain.StepTypeHTTPTrigger, domain.StepTypeTimeTrigger:
			// Триггер внутри графа — сквозной: фиксируем срабатывание
			// и передаём payload дальше.
			out = h.msg.Clone()
			out.Status = domain.StepStatusCompleted
			in.history.Append(domain.HistoryEntry{
				StepID:     step.ID,
				State:      domain.StepStatusCompleted,
				OutputText: "trigger fired",
				Payload:    out.Payload,
			})

		case domain.StepTypeWaitForEvent:
			resumed, ok := e.waitForResume(ctx, in, step, h.msg)
			if !ok {
				// Движок останавливается: инстанс остаётся SUSPENDED
				// в хранилище и восстановится при следующем старте.
				return
			}
			out = resumed

		default:
			out = e.exec.Execute(ctx, in.Workflow(), step, h.msg, in.ec, in.history)
		}

		e.flushHistory(ctx, in)

		// Ошибка шага фатальна для инстанса: retry уже исчерпан
		// исполнителем.
		if out.IsFailed() {
			e.finish(ctx, in, sl, out.ErrorText)
			return
		}

		var failed bool
		queue, failed = e.schedule(ctx, in, sl, step, out, queue)
		if failed {
			return
		}
	}

	e.finish(ctx, in, sl, "")
}

// schedule раздаёт выходное сообщение шага его переходам.
//
// Непустой next_step_ids сообщения имеет приоритет над transition_to.
// Динамический переход на несуществующий шаг фатален для инстанса
// (статическая валидация его не ловила). Возвращает обновлённую
// очередь и признак фатальной ошибки.
func (e *Engine) schedule(ctx context.Context, in *Instance, sl *slot, step *domain.Step, out *domain.FlowMessage, queue []hop) ([]hop, bool) {
	targets := step.TransitionTo
	if len(out.NextStepIDs) > 0 {
		targets = out.NextStepIDs
	}

	for _, id := range targets {
		next, ok := in.def.Step(id)
		if !ok {
			e.finish(ctx, in, sl, fmt.Sprintf("step %s: transition to unknown step %q", step.ID, id))
			return nil, true
		}
		if !in.markDispatched(id) {
			continue
		}
		queue = append(queue, hop{step: next, msg: out})
	}
	return queue, false
}

// waitForResume приостанавливает инстанс на wait-for-event шаге
// до внешнего resume. Возвращает сообщение resume и true, либо
// nil и false при остановке движка.
func (e *Engine) waitForResume(ctx context.Context, in *Instance, step *domain.Step, msg *domain.FlowMessage) (*domain.FlowMessage, bool) {
	in.markSuspended(step.ID)
	e.persistInstance(ctx, in)

	pr := store.PendingResume{
		Workflow:   in.Workflow(),
		StepID:     step.ID,
		InstanceID: in.ID(),
		CreatedAt:  time.Now(),
	}
	if err := e.store.PutPendingResume(ctx, pr); err != nil {
		e.logger.Warn("persist pending resume",
			"workflow", in.Workflow(), "step_id", step.ID, "error", err)
	}

	in.history.Append(domain.HistoryEntry{
		StepID:  step.ID,
		State:   domain.StepStatusStarted,
		Payload: msg.Payload,
	})
	e.flushHistory(ctx, in)
	e.publishEvent(ctx, "instance.suspended", in)
	e.logger.Info("instance suspended",
		"workflow", in.Workflow(),
		"instance_id", in.ID(),
		"step_id", step.ID,
	)

	w := &waiter{instanceID: in.ID(), ch: make(chan *domain.FlowMessage, 1)}
	e.addWaiter(in.Workflow(), step.ID, w)
	suspendedAt := time.Now()

	select {
	case resumed := <-w.ch:
		if err := e.store.DeletePendingResume(ctx, in.Workflow(), step.ID); err != nil {
			e.logger.Warn("delete pending resume",
				"workflow", in.Workflow(), "step_id", step.ID, "error", err)
		}

		in.markRunning(step.ID)
		e.persistInstance(ctx, in)

		in.history.Append(domain.HistoryEntry{
			StepID:     step.ID,
			State:      domain.StepStatusCompleted,
			Elapsed:    time.Since(suspendedAt),
			OutputText: resumed.OutputText,
			Payload:    resumed.Payload,
		})
		e.flushHistory(ctx, in)
		e.publishEvent(ctx, "instance.resumed", in)
		e.logger.Info("instance resumed",
			"workflow", in.Workflow(),
			"instance_id", in.ID(),
			"step_id", step.ID,
		)
		return resumed, true

	case <-ctx.Done():
		e.removeWaiter(in.Workflow(), step.ID, w)
		return nil, false
	}
}

// finish переводит инстанс в терминальное состояние и освобождает слот.
func (e *Engine) finish(ctx context.Context, in *Instance, sl *slot, errText string) {
	in.markFinished(errText)

	// Контекст ephemeral-инстанса очищается при завершении;
	// persistent-инстансы сохраняют его до следующего запуска.
	if in.ephemeral {
		in.ec.Clear()
	}

	e.persistInstance(ctx, in)
	e.flushHistory(ctx, in)

	state := in.State()
	telemetry.InstancesFinished.WithLabelValues(in.Workflow(), string(state)).Inc()

	if errText != "" {
		e.publishEvent(ctx, "instance.failed", in)
		e.logger.Warn("instance failed",
			"workflow", in.Workflow(),
			"instance_id", in.ID(),
			"error", errText,
		)
	} else {
		snap := in.Snapshot()
		e.publishEvent(ctx, "instance.completed", in)
		e.logger.Info("instance completed",
			"workflow", in.Workflow(),
			"instance_id", in.ID(),
			"elapsed", snap.Elapsed(),
		)
	}

	// Слот освобождается после фиксации терминального состояния;
	// current остаётся для stats до следующего допуска.
	if sl != nil {
		sl.release()
	}
	close(in.done)
}

// persistInstance сохраняет снимок инстанса (best effort: ошибка
// хранилища логируется, выполнение продолжается).
func (e *Engine) persistInstance(ctx context.Context, in *Instance) {
	snap := in.Snapshot()
	if err := e.store.PutInstance(ctx, &snap); err != nil {
		e.logger.Warn("persist instance", "instance_id", snap.ID, "error", err)
	}
}

// flushHistory дописывает в хранилище записи журнала, появившиеся
// с прошлого сброса.
func (e *Engine) flushHistory(ctx context.Context, in *Instance) {
	entries := in.history.Entries()

	in.mu.Lock()
	from := in.flushed
	in.flushed = len(entries)
	in.mu.Unlock()

	for _, entry := range entries[from:] {
		if err := e.store.AppendHistory(ctx, in.ID(), entry); err != nil {
			e.logger.Warn("append history", "instance_id", in.ID(), "error", err)
		}
	}
}

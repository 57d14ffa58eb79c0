package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Flowline/internal/domain"
	"github.com/shaiso/Flowline/internal/executor"
	"github.com/shaiso/Flowline/internal/manifest"
	"github.com/shaiso/Flowline/internal/steps"
	"github.com/shaiso/Flowline/internal/store"
	"github.com/shaiso/Flowline/internal/telemetry"
)

// EventPublisher публикует события жизненного цикла инстансов
// (started/suspended/resumed/completed/failed) во внешнюю шину.
//
// Публикация — best effort: ошибка публикации логируется и не влияет
// на выполнение инстанса.
type EventPublisher interface {
	PublishInstanceEvent(ctx context.Context, event string, inst *domain.WorkflowInstance) error
}

// Config — зависимости движка.
type Config struct {
	// Loader — активный манифест (обязателен).
	Loader *manifest.Loader

	// Executor — исполнитель шагов (обязателен).
	Executor *executor.StepExecutor

	// Store — хранилище инстансов, журналов и приостановок (обязательно).
	Store store.Store

	// Publisher — шина событий жизненного цикла (опционально).
	Publisher EventPublisher

	// Logger — логгер (по умолчанию slog.Default).
	Logger *slog.Logger
}

// Engine — ядро: принимает срабатывания триггеров, применяет политику
// допуска start_method, ведёт инстансы по графу шагов и отвечает на
// resume приостановленных wait-for-event шагов.
//
// Инварианты:
//   - persistent-режимы: не более одного RUNNING/SUSPENDED инстанса
//     на workflow (слот с токеном ёмкости 1);
//   - ошибки выполнения шагов — данные (FAILED-инстанс и журнал),
//     ошибки Go поднимаются только для допуска и конфигурации;
//   - definition инстанса фиксируется при старте, reload манифеста
//     на работающие инстансы не влияет.
type Engine struct {
	loader    *manifest.Loader
	exec      *executor.StepExecutor
	store     store.Store
	publisher EventPublisher
	logger    *slog.Logger

	slotsMu sync.Mutex
	slots   map[string]*slot

	waitersMu sync.Mutex
	waiters   map[string][]*waiter

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// waiter — приостановленный инстанс, ждущий resume на конкретном шаге.
type waiter struct {
	instanceID uuid.UUID
	ch         chan *domain.FlowMessage
}

// New создаёт движок. Запуск инстансов возможен после Start.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		loader:    cfg.Loader,
		exec:      cfg.Executor,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		logger:    logger,
		slots:     make(map[string]*slot),
		waiters:   make(map[string][]*waiter),
	}
}

// Start запускает движок: восстанавливает приостановленные инстансы
// из хранилища и открывает приём срабатываний.
func (e *Engine) Start(ctx context.Context) error {
	e.runCtx, e.cancel = context.WithCancel(ctx)
	e.recoverSuspended(e.runCtx)
	e.logger.Info("engine started", "workflows", len(e.loader.Names()))
	return nil
}

// Stop останавливает движок и дожидается завершения run-циклов.
// Приостановленные инстансы остаются SUSPENDED в хранилище
// и восстанавливаются при следующем старте.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.logger.Info("engine stopped")
}

// Fire обрабатывает срабатывание точки входа stepID workflow:
// применяет политику допуска и запускает инстанс.
//
// Возвращаемый Instance — живой хендл: Done() закрывается при
// завершении, Snapshot()/History() доступны конкурентно.
func (e *Engine) Fire(ctx context.Context, workflow, stepID string, payload any) (*Instance, error) {
	if e.runCtx == nil || e.runCtx.Err() != nil {
		return nil, ErrEngineStopped
	}

	def, gen, err := e.loader.Workflow(workflow)
	if err != nil {
		return nil, err
	}

	step, ok := def.Step(stepID)
	if !ok {
		return nil, fmt.Errorf("%w: %q in workflow %q", ErrStepNotFound, stepID, workflow)
	}
	if !step.Trigger {
		return nil, fmt.Errorf("%w: %q", ErrStepNotTrigger, stepID)
	}
	if !step.Enabled {
		return nil, fmt.Errorf("%w: %q", ErrStepDisabled, stepID)
	}

	method := def.EffectiveStartMethod()

	// 1. Допуск: persistent-режимы проходят через слот workflow.
	var sl *slot
	if method != domain.StartEphemeral {
		sl = e.slot(workflow)
		maxWait := time.Duration(def.MaxWaitMs) * time.Millisecond
		if err := sl.acquire(ctx, method, maxWait); err != nil {
			telemetry.AdmissionRejected.WithLabelValues(workflow, rejectReason(err)).Inc()
			return nil, err
		}
	}

	// 2. Инстанс создаётся только после допуска.
	in := newInstance(def, gen)
	if sl != nil {
		sl.setCurrent(in)
	}

	telemetry.InstancesStarted.WithLabelValues(workflow).Inc()
	telemetry.TriggerFirings.WithLabelValues(workflow, triggerKind(step.Type)).Inc()

	// 3. Выполнение — в отдельной горутине; вызывающий решает сам,
	// ждать ли Done() (persistent_blocking HTTP-триггер ждёт).
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(in, sl, step, domain.NewMessage(payload))
	}()

	return in, nil
}

// StartWorkflow запускает workflow с его первой включённой точки входа.
// Реализует steps.WorkflowStarter для обработчика start-sub-workflow.
func (e *Engine) StartWorkflow(ctx context.Context, workflow string, payload any) (uuid.UUID, error) {
	def, _, err := e.loader.Workflow(workflow)
	if err != nil {
		return uuid.Nil, err
	}

	triggers := def.TriggerSteps()
	if len(triggers) == 0 {
		return uuid.Nil, fmt.Errorf("%w: workflow %q", manifest.ErrNoTrigger, workflow)
	}

	in, err := e.Fire(ctx, workflow, triggers[0].ID, payload)
	if err != nil {
		return uuid.Nil, err
	}
	return in.ID(), nil
}

// Resume будит инстанс, приостановленный на wait-for-event шаге stepID.
// payload становится payload сообщения, с которым продолжится граф.
// Возвращает ID разбуженного инстанса.
func (e *Engine) Resume(ctx context.Context, workflow, stepID string, payload any) (uuid.UUID, error) {
	w := e.popWaiter(workflow, stepID)
	if w == nil {
		return uuid.Nil, fmt.Errorf("%w: %s/%s", ErrNotSuspended, workflow, stepID)
	}

	telemetry.TriggerFirings.WithLabelValues(workflow, "event").Inc()
	w.ch <- domain.CompletedMessage(payload, "resumed by external event")
	return w.instanceID, nil
}

// Stats — live-статистика единственного отслеживаемого инстанса
// workflow (persistent-режимы). Инстанс остаётся отслеживаемым
// и после завершения — до следующего запуска.
type Stats struct {
	InstanceID    uuid.UUID             `json:"instance_id"`
	Workflow      string                `json:"workflow"`
	State         domain.InstanceState  `json:"state"`
	CurrentStepID string                `json:"current_step_id,omitempty"`
	Elapsed       time.Duration         `json:"elapsed"`
	LastError     string                `json:"last_error,omitempty"`
	Log           []domain.HistoryEntry `json:"log"`
}

// Stats возвращает статистику текущего инстанса workflow.
// Журнал отдаётся в отфильтрованном виде (пары STARTED+COMPLETED
// схлопнуты).
func (e *Engine) Stats(workflow string) (*Stats, error) {
	def, _, err := e.loader.Workflow(workflow)
	if err != nil {
		return nil, err
	}
	if def.EffectiveStartMethod() == domain.StartEphemeral {
		return nil, fmt.Errorf("%w: %s", ErrStatsNotAvailable, workflow)
	}

	sl := e.slotIfExists(workflow)
	if sl == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTrackedInstance, workflow)
	}
	in := sl.currentInstance()
	if in == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTrackedInstance, workflow)
	}

	snap := in.Snapshot()
	return &Stats{
		InstanceID:    snap.ID,
		Workflow:      snap.Workflow,
		State:         snap.State,
		CurrentStepID: snap.CurrentStepID,
		Elapsed:       snap.Elapsed(),
		LastError:     snap.LastError,
		Log:           in.History().Filtered(),
	}, nil
}

// InstanceHistory возвращает инстанс и его журнал из хранилища.
func (e *Engine) InstanceHistory(ctx context.Context, id uuid.UUID) (*domain.WorkflowInstance, []domain.HistoryEntry, error) {
	inst, err := e.store.GetInstance(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	entries, err := e.store.ListHistory(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return inst, entries, nil
}

// Reload перечитывает манифест и атомарно подменяет активное поколение.
// Работающие инстансы продолжают на своём поколении.
func (e *Engine) Reload() (int, error) {
	gen, err := e.loader.Reload()
	if err != nil {
		return 0, err
	}
	e.logger.Info("manifest reloaded", "generation", gen, "workflows", len(e.loader.Names()))
	return gen, nil
}

// Loader возвращает активный манифест (для API и диспетчера триггеров).
func (e *Engine) Loader() *manifest.Loader {
	return e.loader
}

// recoverSuspended восстанавливает приостановленные инстансы
// по pending-resume записям хранилища.
//
// Восстановленный инстанс получает definition текущего поколения:
// текст его исходного поколения не переживает рестарт процесса.
// ExecutionContext при рестарте теряется — это документированное
// ограничение wait-for-event.
func (e *Engine) recoverSuspended(ctx context.Context) {
	prs, err := e.store.ListPendingResumes(ctx)
	if err != nil {
		e.logger.Warn("list pending resumes", "error", err)
		return
	}

	for _, pr := range prs {
		def, gen, err := e.loader.Workflow(pr.Workflow)
		if err != nil {
			e.logger.Warn("recover: workflow gone from manifest",
				"workflow", pr.Workflow, "step_id", pr.StepID)
			continue
		}
		step, ok := def.Step(pr.StepID)
		if !ok || step.Type != domain.StepTypeWaitForEvent {
			e.logger.Warn("recover: suspension step gone from definition",
				"workflow", pr.Workflow, "step_id", pr.StepID)
			continue
		}

		stored, err := e.store.GetInstance(ctx, pr.InstanceID)
		if err != nil || stored.State != domain.InstanceSuspended {
			e.logger.Warn("recover: instance not suspended",
				"workflow", pr.Workflow, "instance_id", pr.InstanceID)
			continue
		}

		entries, err := e.store.ListHistory(ctx, pr.InstanceID)
		if err != nil {
			e.logger.Warn("recover: read history", "instance_id", pr.InstanceID, "error", err)
			continue
		}

		in := restoreInstance(def, gen, stored, entries)

		var sl *slot
		if def.EffectiveStartMethod() != domain.StartEphemeral {
			sl = e.slot(pr.Workflow)
			if !sl.tryAcquire() {
				e.logger.Warn("recover: workflow slot busy", "workflow", pr.Workflow)
				continue
			}
			sl.setCurrent(in)
		}

		e.logger.Info("recovered suspended instance",
			"workflow", pr.Workflow,
			"instance_id", pr.InstanceID,
			"step_id", pr.StepID,
		)

		// Run-цикл снова дойдёт до wait-for-event шага и повиснет
		// на ожидании resume.
		e.wg.Add(1)
		go func(in *Instance, sl *slot, step *domain.Step) {
			defer e.wg.Done()
			e.run(in, sl, step, domain.NewMessage(nil))
		}(in, sl, step)
	}
}

// slot возвращает слот workflow, создавая его при первом обращении.
func (e *Engine) slot(workflow string) *slot {
	e.slotsMu.Lock()
	defer e.slotsMu.Unlock()

	sl, ok := e.slots[workflow]
	if !ok {
		sl = newSlot()
		e.slots[workflow] = sl
	}
	return sl
}

// slotIfExists возвращает слот workflow, если он уже создан.
func (e *Engine) slotIfExists(workflow string) *slot {
	e.slotsMu.Lock()
	defer e.slotsMu.Unlock()
	return e.slots[workflow]
}

// addWaiter регистрирует ожидание resume (FIFO в рамках шага).
func (e *Engine) addWaiter(workflow, stepID string, w *waiter) {
	e.waitersMu.Lock()
	defer e.waitersMu.Unlock()
	key := waiterKey(workflow, stepID)
	e.waiters[key] = append(e.waiters[key], w)
}

// popWaiter снимает самое старое ожидание resume для шага.
func (e *Engine) popWaiter(workflow, stepID string) *waiter {
	e.waitersMu.Lock()
	defer e.waitersMu.Unlock()

	key := waiterKey(workflow, stepID)
	ws := e.waiters[key]
	if len(ws) == 0 {
		return nil
	}
	w := ws[0]
	if len(ws) == 1 {
		delete(e.waiters, key)
	} else {
		e.waiters[key] = ws[1:]
	}
	return w
}

// removeWaiter снимает конкретное ожидание (остановка движка).
func (e *Engine) removeWaiter(workflow, stepID string, w *waiter) {
	e.waitersMu.Lock()
	defer e.waitersMu.Unlock()

	key := waiterKey(workflow, stepID)
	ws := e.waiters[key]
	for i, cand := range ws {
		if cand == w {
			e.waiters[key] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(e.waiters[key]) == 0 {
		delete(e.waiters, key)
	}
}

// publishEvent публикует событие жизненного цикла (best effort).
func (e *Engine) publishEvent(ctx context.Context, event string, in *Instance) {
	if e.publisher == nil {
		return
	}
	snap := in.Snapshot()
	if err := e.publisher.PublishInstanceEvent(ctx, event, &snap); err != nil {
		e.logger.Warn("publish instance event",
			"event", event,
			"instance_id", snap.ID,
			"error", err,
		)
	}
}

// waiterKey — ключ ожидания resume.
func waiterKey(workflow, stepID string) string {
	return workflow + "/" + stepID
}

// rejectReason — метка причины отказа в допуске для метрики.
func rejectReason(err error) string {
	switch err {
	case ErrInstanceRunning:
		return "busy"
	case ErrWaitTimeout:
		return "wait_timeout"
	default:
		return "other"
	}
}

// triggerKind — метка вида триггера для метрики.
func triggerKind(stype string) string {
	switch stype {
	case domain.StepTypeHTTPTrigger:
		return "http"
	case domain.StepTypeTimeTrigger:
		return "time"
	default:
		return "manual"
	}
}

// Гарантия соответствия интерфейсу обработчика start-sub-workflow.
var _ steps.WorkflowStarter = (*Engine)(nil)

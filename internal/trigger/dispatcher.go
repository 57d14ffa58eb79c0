package trigger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/Flowline/internal/domain"
	"github.com/shaiso/Flowline/internal/engine"
	"github.com/shaiso/Flowline/internal/mq"
)

// Dispatcher превращает внешние источники срабатываний в вызовы движка:
//   - time-trigger шаги активного манифеста получают по таймер-горутине;
//   - очереди triggers.fire и triggers.resume (если настроен RabbitMQ)
//     доставляют срабатывания и resume от внешних систем.
//
// Снимок time-trigger шагов делается на Start: после reload манифеста
// диспетчер перезапускают (Restart), чтобы таймеры соответствовали
// новому поколению.
type Dispatcher struct {
	engine *engine.Engine
	conn   *mq.Connection
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config — зависимости Dispatcher.
type Config struct {
	// Engine — движок (обязателен).
	Engine *engine.Engine

	// Conn — соединение с RabbitMQ (опционально: без него работают
	// только таймеры).
	Conn *mq.Connection

	// Logger — логгер (по умолчанию slog.Default).
	Logger *slog.Logger
}

// New создаёт Dispatcher.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		engine: cfg.Engine,
		conn:   cfg.Conn,
		logger: logger,
	}
}

// Start запускает таймеры time-trigger шагов активного поколения
// и MQ-потребителей. Не блокирует.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	var timers int
	for _, def := range d.engine.Loader().Workflows() {
		for _, step := range def.TriggerSteps() {
			if step.Type != domain.StepTypeTimeTrigger {
				continue
			}

			interval, _ := step.ParamString("interval")
			sched, err := ParseInterval(interval)
			if err != nil {
				// Валидация манифеста проверяет лишь наличие интервала;
				// нераспознанное выражение отключает таймер, не workflow.
				d.logger.Error("time trigger disabled: bad interval",
					"workflow", def.Name,
					"step_id", step.ID,
					"interval", interval,
					"error", err,
				)
				continue
			}

			timers++
			d.wg.Add(1)
			go d.runTimer(runCtx, def.Name, step.ID, sched)
		}
	}

	if d.conn != nil {
		d.startConsumer(runCtx, mq.QueueTriggersFire, d.handleFire)
		d.startConsumer(runCtx, mq.QueueTriggersResume, d.handleResume)
	}

	d.logger.Info("trigger dispatcher started",
		"timers", timers,
		"mq", d.conn != nil,
	)
	return nil
}

// Stop останавливает таймеры и потребителей и дожидается их завершения.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
}

// Restart пересоздаёт таймеры по текущему поколению манифеста.
// Вызывается после reload.
func (d *Dispatcher) Restart(ctx context.Context) error {
	d.Stop()
	return d.Start(ctx)
}

// runTimer ждёт очередного срабатывания расписания и запускает workflow.
func (d *Dispatcher) runTimer(ctx context.Context, workflow, stepID string, sched cron.Schedule) {
	defer d.wg.Done()

	for {
		next := sched.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := d.engine.Fire(ctx, workflow, stepID, nil); err != nil {
			d.logFireError(workflow, stepID, err)
		}
	}
}

// startConsumer запускает MQ-потребителя в фоне.
func (d *Dispatcher) startConsumer(ctx context.Context, queue mq.Queue, handler mq.Handler) {
	consumer := mq.NewConsumer(d.conn, d.logger, mq.ConsumerConfig{
		Queue:   queue,
		Handler: handler,
	})

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("consumer stopped", "queue", queue, "error", err)
		}
	}()
}

// handleFire обрабатывает внешнее срабатывание триггера из очереди.
func (d *Dispatcher) handleFire(ctx context.Context, del *mq.Delivery) error {
	p, err := mq.ParsePayload[mq.TriggerFirePayload](&del.Message)
	if err != nil {
		// Кривой payload не исправится при requeue
		d.logger.Error("bad trigger.fire payload", "message_id", del.Message.ID, "error", err)
		return nil
	}

	if _, err := d.engine.Fire(ctx, p.Workflow, p.StepID, p.Payload); err != nil {
		if errors.Is(err, engine.ErrEngineStopped) {
			return err
		}
		// Отказ допуска или валидации — решение политики, не сбой доставки
		d.logFireError(p.Workflow, p.StepID, err)
	}
	return nil
}

// handleResume обрабатывает внешний resume из очереди.
func (d *Dispatcher) handleResume(ctx context.Context, del *mq.Delivery) error {
	p, err := mq.ParsePayload[mq.ResumePayload](&del.Message)
	if err != nil {
		d.logger.Error("bad trigger.resume payload", "message_id", del.Message.ID, "error", err)
		return nil
	}

	if _, err := d.engine.Resume(ctx, p.Workflow, p.StepID, p.Payload); err != nil {
		if errors.Is(err, engine.ErrNotSuspended) {
			d.logger.Warn("resume with no suspended instance",
				"workflow", p.Workflow,
				"step_id", p.StepID,
			)
			return nil
		}
		return err
	}
	return nil
}

// logFireError логирует отказ запуска: отказы допуска ожидаемы
// и не являются ошибками диспетчера.
func (d *Dispatcher) logFireError(workflow, stepID string, err error) {
	switch {
	case errors.Is(err, engine.ErrInstanceRunning), errors.Is(err, engine.ErrWaitTimeout):
		d.logger.Info("trigger firing rejected by start policy",
			"workflow", workflow,
			"step_id", stepID,
			"reason", err,
		)
	default:
		d.logger.Warn("trigger firing failed",
			"workflow", workflow,
			"step_id", stepID,
			"error", err,
		)
	}
}

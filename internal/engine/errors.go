package engine

import "errors"

// Ошибки движка.
//
// Движок поднимает ошибки только для допуска (start_method) и
// конфигурации; все ошибки выполнения шагов представляются данными
// (FAILED-статус инстанса и журнал), а не исключениями.
var (
	// ErrInstanceRunning — persistent_non_blocking: у workflow уже есть
	// RUNNING инстанс, запуск отклонён без ожидания и без очереди.
	ErrInstanceRunning = errors.New("workflow already has a running instance")

	// ErrWaitTimeout — persistent_blocking: предыдущий инстанс не
	// завершился за max_wait. Инстанс не создаётся.
	ErrWaitTimeout = errors.New("timed out waiting for running instance to finish")

	// ErrStepNotFound — шаг с таким ID отсутствует в definition.
	ErrStepNotFound = errors.New("step not found")

	// ErrStepNotTrigger — попытка запустить workflow с шага,
	// не являющегося точкой входа.
	ErrStepNotTrigger = errors.New("step is not a trigger")

	// ErrStepDisabled — точка входа отключена.
	ErrStepDisabled = errors.New("step is disabled")

	// ErrNotSuspended — resume для шага, на котором никто не приостановлен.
	ErrNotSuspended = errors.New("no instance suspended at step")

	// ErrStatsNotAvailable — live-статистика недоступна для
	// ephemeral_instance: единственного «текущего» инстанса нет.
	ErrStatsNotAvailable = errors.New("stats not available for ephemeral workflows")

	// ErrNoTrackedInstance — у workflow ещё не было ни одного инстанса.
	ErrNoTrackedInstance = errors.New("no tracked instance for workflow")

	// ErrEngineStopped — движок остановлен.
	ErrEngineStopped = errors.New("engine stopped")
)

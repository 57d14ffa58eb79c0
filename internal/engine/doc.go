// Package engine реализует ядро Flowline: жизненный цикл инстансов
// workflow.
//
// # Поток выполнения
//
// Срабатывание триггера (Fire) проходит допуск по start_method
// workflow:
//
//   - persistent_blocking (default): слот ёмкости 1; конкурирующий
//     запуск ждёт освобождения до max_wait, затем отклоняется;
//   - persistent_non_blocking: слот ёмкости 1; конкурирующий запуск
//     отклоняется немедленно;
//   - ephemeral_instance: без ограничений, stats недоступна.
//
// Допущенный инстанс ведётся run-циклом по графу шагов: очередь хопов
// обходится в ширину, выходное сообщение шага раздаётся его переходам
// (динамический next_step_ids имеет приоритет над статическим
// transition_to), каждый шаг получает не более одного сообщения —
// от первой достигшей его ветки.
//
// wait-for-event шаг приостанавливает инстанс (SUSPENDED) до внешнего
// Resume; приостановка фиксируется в хранилище и переживает рестарт
// процесса (recoverSuspended).
//
// Ошибки шагов — данные: исчерпание retry переводит инстанс в FAILED,
// Go-ошибки поднимаются только на допуске и валидации.
package engine

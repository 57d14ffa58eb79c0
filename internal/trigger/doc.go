// Package trigger связывает внешние источники срабатываний с движком:
// таймеры time-trigger шагов (расписания из params.interval) и очереди
// RabbitMQ triggers.fire / triggers.resume.
package trigger

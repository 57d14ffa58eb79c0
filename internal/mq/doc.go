// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//
// Типы сообщений:
//   - trigger.fire    — внешнее срабатывание триггера
//   - trigger.resume  — внешний resume wait-for-event шага
//   - instance.event  — событие жизненного цикла инстанса
//
// Exchanges:
//   - flowline.triggers — команды движку (direct)
//   - flowline.events   — события инстансов (topic, routing key = событие)
package mq

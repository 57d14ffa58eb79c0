package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// Обменники.
const (
	// ExchangeTriggers — команды движку: срабатывания триггеров и resume.
	ExchangeTriggers Exchange = "flowline.triggers"

	// ExchangeEvents — события жизненного цикла инстансов (topic,
	// routing key = имя события: instance.started, instance.failed, ...).
	ExchangeEvents Exchange = "flowline.events"
)

// Очереди.
const (
	// QueueTriggersFire — внешние срабатывания триггеров.
	QueueTriggersFire Queue = "triggers.fire"

	// QueueTriggersResume — внешние resume для wait-for-event шагов.
	QueueTriggersResume Queue = "triggers.resume"

	// QueueInstanceEvents — все события инстансов (для внешних подписчиков).
	QueueInstanceEvents Queue = "events.instances"
)

// Ключи маршрутизации.
const (
	RoutingKeyFire   RoutingKey = "fire"
	RoutingKeyResume RoutingKey = "resume"

	// RoutingKeyInstanceAll — binding-паттерн очереди событий.
	RoutingKeyInstanceAll RoutingKey = "instance.#"
)

// SetupTopology объявляет обменники, очереди и привязки.
// Идемпотентна: повторный вызов на существующей топологии безопасен.
func SetupTopology(conn *Connection) error {
	return conn.WithChannel(func(ch *amqp.Channel) error {
		exchanges := []struct {
			name Exchange
			kind string
		}{
			{ExchangeTriggers, "direct"},
			{ExchangeEvents, "topic"},
		}
		for _, ex := range exchanges {
			if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		queues := []Queue{QueueTriggersFire, QueueTriggersResume, QueueInstanceEvents}
		for _, q := range queues {
			if _, err := ch.QueueDeclare(string(q), true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare queue %s: %w", q, err)
			}
		}

		bindings := []struct {
			queue      Queue
			routingKey RoutingKey
			exchange   Exchange
		}{
			{QueueTriggersFire, RoutingKeyFire, ExchangeTriggers},
			{QueueTriggersResume, RoutingKeyResume, ExchangeTriggers},
			{QueueInstanceEvents, RoutingKeyInstanceAll, ExchangeEvents},
		}
		for _, b := range bindings {
			if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

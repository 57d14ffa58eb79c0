package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler — обработчик доставленного сообщения.
// Ошибка обработчика возвращает сообщение в очередь (nack + requeue).
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	// Message — распарсенный конверт.
	Message Message

	// Raw — сырое AMQP-сообщение.
	Raw amqp.Delivery
}

// Consumer потребляет сообщения одной очереди и переживает
// переподключения соединения.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	handler  Handler
	prefetch int

	cancel context.CancelFunc
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue Queue

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — количество неподтверждённых сообщений (default: 1).
	Prefetch int
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start запускает цикл потребления. Блокирует до отмены ctx или Stop.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := c.setup()
		if err != nil {
			c.logger.Error("setup consume failed", "queue", c.queue, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				continue
			}
		}

		c.logger.Info("consumer started", "queue", c.queue)

		if err := c.drain(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect", "queue", c.queue)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
			}
		}
	}
}

// Stop останавливает потребление.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// setup устанавливает prefetch и начинает consume.
func (c *Consumer) setup() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no amqp channel available")
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(string(c.queue), "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

// drain обрабатывает сообщения до закрытия канала доставки.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			c.handle(ctx, raw)
		}
	}
}

// handle обрабатывает одно сообщение.
func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("unmarshal message failed",
			"queue", c.queue,
			"error", err,
		)
		// Некорректное сообщение не станет корректным при requeue
		raw.Nack(false, false)
		return
	}

	if err := c.handler(ctx, &Delivery{Message: msg, Raw: raw}); err != nil {
		c.logger.Error("handler failed",
			"queue", c.queue,
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		raw.Nack(false, true)
		return
	}

	raw.Ack(false)
}

// ParsePayload декодирует payload конверта в конкретный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}

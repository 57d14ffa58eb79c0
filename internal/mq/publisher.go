package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Flowline/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeTriggerFire   MessageType = "trigger.fire"
	MessageTypeTriggerResume MessageType = "trigger.resume"
	MessageTypeInstanceEvent MessageType = "instance.event"
)

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка (зависит от Type).
	Payload any `json:"payload"`

	// Timestamp — время публикации.
	Timestamp time.Time `json:"timestamp"`
}

// TriggerFirePayload — внешнее срабатывание триггера.
type TriggerFirePayload struct {
	Workflow string `json:"workflow"`
	StepID   string `json:"step_id"`
	Payload  any    `json:"payload,omitempty"`
}

// ResumePayload — внешний resume приостановленного wait-for-event шага.
type ResumePayload struct {
	Workflow string `json:"workflow"`
	StepID   string `json:"step_id"`
	Payload  any    `json:"payload,omitempty"`
}

// InstanceEventPayload — событие жизненного цикла инстанса.
type InstanceEventPayload struct {
	Event      string    `json:"event"`
	InstanceID uuid.UUID `json:"instance_id"`
	Workflow   string    `json:"workflow"`
	State      string    `json:"state"`
	LastError  string    `json:"last_error,omitempty"`
}

// Publisher публикует сообщения Flowline в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher поверх соединения.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx,
			string(exchange),
			string(routingKey),
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishTriggerFire публикует срабатывание триггера.
// Потребитель: диспетчер триггеров.
func (p *Publisher) PublishTriggerFire(ctx context.Context, workflow, stepID string, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTriggerFire,
		Payload:   TriggerFirePayload{Workflow: workflow, StepID: stepID, Payload: payload},
		Timestamp: time.Now(),
	}
	return p.Publish(ctx, ExchangeTriggers, RoutingKeyFire, msg)
}

// PublishResume публикует внешний resume.
// Потребитель: диспетчер триггеров.
func (p *Publisher) PublishResume(ctx context.Context, workflow, stepID string, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTriggerResume,
		Payload:   ResumePayload{Workflow: workflow, StepID: stepID, Payload: payload},
		Timestamp: time.Now(),
	}
	return p.Publish(ctx, ExchangeTriggers, RoutingKeyResume, msg)
}

// PublishInstanceEvent публикует событие жизненного цикла инстанса.
// Routing key — имя события (instance.started, instance.completed, ...),
// внешние подписчики фильтруют по нему.
func (p *Publisher) PublishInstanceEvent(ctx context.Context, event string, inst *domain.WorkflowInstance) error {
	msg := &Message{
		ID:   uuid.New().String(),
		Type: MessageTypeInstanceEvent,
		Payload: InstanceEventPayload{
			Event:      event,
			InstanceID: inst.ID,
			Workflow:   inst.Workflow,
			State:      string(inst.State),
			LastError:  inst.LastError,
		},
		Timestamp: time.Now(),
	}
	return p.Publish(ctx, ExchangeEvents, RoutingKey(event), msg)
}

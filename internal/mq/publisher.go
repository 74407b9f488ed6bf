package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения.
type MessageType string

const (
	MessageTypeTransition     MessageType = "transition"
	MessageTypeActionCallback MessageType = "action.callback"
)

// Message — конверт всех сообщений.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// TransitionEvent — переход статуса job или действия.
type TransitionEvent struct {
	// Entity — "workflow", "action", "coordinator", "bundle".
	Entity   string `json:"entity"`
	JobID    string `json:"job_id"`
	ActionID string `json:"action_id,omitempty"`
	NodeName string `json:"node_name,omitempty"`
	Status   string `json:"status"`
}

// CallbackPayload — сообщение внешней системы о состоянии действия.
type CallbackPayload struct {
	ActionID       string `json:"action_id"`
	ExternalStatus string `json:"external_status,omitempty"`
}

// Publisher публикует сообщения в брокер.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует msg в exchange с ключом routingKey.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx,
			string(exchange),
			string(routingKey),
			false, // mandatory
			false, // immediate
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

// PublishTransition публикует событие перехода статуса.
func (p *Publisher) PublishTransition(ctx context.Context, ev TransitionEvent) error {
	return p.Publish(ctx, ExchangeEvents, TransitionRoutingKey(ev.Entity, ev.Status), NewMessage(MessageTypeTransition, ev))
}

// PublishCallback публикует обратный вызов по действию.
// Используется CLI и тестовыми стендами; обычно его шлёт внешняя система.
func (p *Publisher) PublishCallback(ctx context.Context, cb CallbackPayload) error {
	return p.Publish(ctx, ExchangeCallbacks, RoutingKeyCallback, NewMessage(MessageTypeActionCallback, cb))
}

// NewMessage оборачивает payload в конверт с новым ID.
func NewMessage(t MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

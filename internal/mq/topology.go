package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	// ExchangeEvents — события переходов статусов (topic).
	ExchangeEvents Exchange = "coordinator.events"

	// ExchangeCallbacks — обратные вызовы внешних систем по действиям.
	ExchangeCallbacks Exchange = "coordinator.callbacks"

	ExchangeDLQ Exchange = "coordinator.dlq"
)

const (
	QueueActionCallbacks Queue = "actions.callback"
	QueueDLQCallbacks    Queue = "dlq.callbacks"
)

const (
	RoutingKeyCallback    RoutingKey = "action"
	RoutingKeyDLQCallback RoutingKey = "callbacks"
)

// TransitionRoutingKey — ключ события перехода: "<job_type>.<status>",
// например "workflow.SUCCEEDED" или "action.ERROR".
func TransitionRoutingKey(entity, status string) RoutingKey {
	return RoutingKey(entity + "." + status)
}

// SetupTopology объявляет обменники, очереди и привязки.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeEvents, amqp.ExchangeTopic},
		{ExchangeCallbacks, amqp.ExchangeDirect},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name),
			ex.kind,
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}
	return nil
}

func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQCallback),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// Непарсящиеся обратные вызовы уходят в DLQ
		{QueueActionCallbacks, dlqArgs},
		{QueueDLQCallbacks, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name),
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			q.args,
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueActionCallbacks, RoutingKeyCallback, ExchangeCallbacks},
		{QueueDLQCallbacks, RoutingKeyDLQCallback, ExchangeDLQ},
	}

	for _, b := range bindings {
		if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// TopologyInfo описывает топологию для стартового лога.
func TopologyInfo() string {
	return `
  Coordinator AMQP topology:

    coordinator.events (topic)
    └── <entity>.<status>        published on every job/action transition

    coordinator.callbacks (direct)
    └── actions.callback [routing: action]
            Consumer: coordinator-server (triggers action check)
            DLQ: dlq.callbacks

    coordinator.dlq (direct)
    └── dlq.callbacks [routing: callbacks]
  `
}

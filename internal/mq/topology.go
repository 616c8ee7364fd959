package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeEvents — события жизненного цикла runs (topic).
	ExchangeEvents Exchange = "interflow.events"

	// ExchangeTriggers — входящие триггеры запуска flows (direct).
	ExchangeTriggers Exchange = "interflow.triggers"

	// ExchangeDLQ — dead letter exchange для необработанных триггеров.
	ExchangeDLQ Exchange = "interflow.dlq"
)

// Queues — имена очередей.
const (
	QueueRunEvents   Queue = "events.runs"
	QueueTriggers    Queue = "triggers.inbound"
	QueueDLQTriggers Queue = "dlq.triggers"
)

// Routing keys.
const (
	// BindingRunEvents — topic-паттерн для всех событий runs
	// (run.started, run.completed, run.failed).
	BindingRunEvents RoutingKey = "run.*"

	RoutingKeyTrigger     RoutingKey = "trigger"
	RoutingKeyDLQTriggers RoutingKey = "triggers"
)

// SetupTopology объявляет exchanges, queues и bindings.
// Идемпотентна: повторное объявление с теми же параметрами безопасно,
// поэтому каждый сервис вызывает её при старте.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		if err := bindQueues(ch); err != nil {
			return err
		}

		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		// events — topic, чтобы подписчики могли фильтровать по типу события
		{ExchangeEvents, "topic"},
		{ExchangeTriggers, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Триггеры, которые не удалось обработать, уходят в DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQTriggers),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// events.runs — без DLQ (события наблюдательные, потеря не критична)
		{QueueRunEvents, nil},

		// triggers.inbound — с DLQ (кривой триггер не должен крутиться вечно)
		{QueueTriggers, dlqArgs},

		// dlq.triggers — сама DLQ очередь
		{QueueDLQTriggers, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueRunEvents, BindingRunEvents, ExchangeEvents},
		{QueueTriggers, RoutingKeyTrigger, ExchangeTriggers},
		{QueueDLQTriggers, RoutingKeyDLQTriggers, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Interflow RabbitMQ Topology:

    interflow.events (topic)
    └── events.runs [binding: run.*]
            run.started / run.completed / run.failed
            Consumer: external subscribers

    interflow.triggers (direct)
    └── triggers.inbound [routing: trigger]
            Consumer: trigger worker
            DLQ: dlq.triggers

    interflow.dlq (direct)
    └── dlq.triggers [routing: triggers]
            Manual processing
  `
}

package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/torbel/Interflow/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunStarted   MessageType = "run.started"
	MessageTypeRunCompleted MessageType = "run.completed"
	MessageTypeRunFailed    MessageType = "run.failed"
	MessageTypeFlowTrigger  MessageType = "flow.trigger"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// RunEventPayload — payload событий run.started / run.completed / run.failed.
type RunEventPayload struct {
	RunID       uuid.UUID  `json:"run_id"`
	FlowID      uuid.UUID  `json:"flow_id"`
	FlowVersion int        `json:"flow_version"`
	TraceID     uuid.UUID  `json:"trace_id"`
	Status      string     `json:"status"`
	TriggeredBy string     `json:"triggered_by,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorNodeID string     `json:"error_node_id,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// TriggerPayload — payload сообщения flow.trigger.
// Внешняя система кладёт его в triggers.inbound, чтобы запустить flow.
type TriggerPayload struct {
	// Flow — имя или UUID запускаемого flow.
	Flow string `json:"flow"`

	// Input — входные данные запуска.
	Input map[string]any `json:"input,omitempty"`

	// TriggeredBy — источник запуска. Пустое значение трактуется как "mq".
	TriggeredBy string `json:"triggered_by,omitempty"`
}

// runEvent собирает payload события из состояния run.
func runEvent(run *domain.FlowRun) RunEventPayload {
	return RunEventPayload{
		RunID:       run.ID,
		FlowID:      run.FlowID,
		FlowVersion: run.FlowVersion,
		TraceID:     run.TraceID,
		Status:      string(run.Status),
		TriggeredBy: run.TriggeredBy,
		Error:       run.Error,
		ErrorNodeID: run.ErrorNodeID,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
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

// PublishRunStarted публикует событие о начале выполнения run.
func (p *Publisher) PublishRunStarted(ctx context.Context, run *domain.FlowRun) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeRunStarted,
		Payload:   runEvent(run),
		Timestamp: time.Now(),
	}

	// Routing key совпадает с типом события: подписчики фильтруют по run.*
	return p.Publish(ctx, ExchangeEvents, RoutingKey(msg.Type), msg)
}

// PublishRunFinished публикует событие о завершении run.
// Тип события выбирается по итоговому статусу: run.completed или run.failed.
func (p *Publisher) PublishRunFinished(ctx context.Context, run *domain.FlowRun) error {
	msgType := MessageTypeRunCompleted
	if run.Status == domain.RunStatusFailed {
		msgType = MessageTypeRunFailed
	}

	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   runEvent(run),
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKey(msg.Type), msg)
}

// PublishTrigger публикует запрос на запуск flow.
// Потребитель: trigger worker.
func (p *Publisher) PublishTrigger(ctx context.Context, payload TriggerPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeFlowTrigger,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeTriggers, RoutingKeyTrigger, msg)
}

// PublishJSON публикует произвольный JSON payload.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, exchange, routingKey, msg)
}

package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/syncerr"
	"github.com/ozone-his/eip-hcwathome-openmrs/pkg/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler synchronizes one change event
type MessageHandler interface {
	ProcessMessage(ctx context.Context, correlationID string, ev models.ChangeEvent) error
}

// DeadLetterHandler records events that are rejected for good
type DeadLetterHandler interface {
	HandleDeadLetter(ctx context.Context, correlationID string, ev models.ChangeEvent, body []byte, cause error) error
}

// ConsumerOptions names the topology the consumer binds to
type ConsumerOptions struct {
	Exchange   string
	Queue      string
	RoutingKey string
	RetryDelay time.Duration
}

type disposition int

const (
	dispositionAck disposition = iota
	dispositionDeadLetter
	dispositionRequeue
)

// RabbitMQConsumer manages the connection and message flow from the broker
type RabbitMQConsumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	handler  MessageHandler
	feedback DeadLetterHandler
	opts     ConsumerOptions
	logger   *slog.Logger
}

// NewRabbitMQConsumer connects and declares the exchange, queue and binding
func NewRabbitMQConsumer(url string, opts ConsumerOptions, handler MessageHandler, feedback DeadLetterHandler, logger *slog.Logger) (*RabbitMQConsumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	// Prefetch 1 keeps events of the same appointment in order
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	if err := ch.ExchangeDeclare(opts.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return newConsumer(conn, ch, opts, handler, feedback, logger), nil
}

func newConsumer(conn *amqp.Connection, ch *amqp.Channel, opts ConsumerOptions, handler MessageHandler, feedback DeadLetterHandler, logger *slog.Logger) *RabbitMQConsumer {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	return &RabbitMQConsumer{
		conn:     conn,
		channel:  ch,
		handler:  handler,
		feedback: feedback,
		opts:     opts,
		logger:   logger,
	}
}

// Listen consumes until the context is canceled or the channel closes
func (c *RabbitMQConsumer) Listen(ctx context.Context) error {
	q, err := c.channel.QueueDeclare(c.opts.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := c.channel.QueueBind(q.Name, c.opts.RoutingKey, c.opts.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	msgs, err := c.channel.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	metrics.HealthStatus.Set(1)
	defer metrics.HealthStatus.Set(0)

	c.logger.Info("Consumer is online and waiting for messages", "queue", q.Name, "routing_key", c.opts.RoutingKey)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			correlationID := correlationIDOf(d.Headers, d.MessageId)

			switch c.handle(ctx, correlationID, d.Body) {
			case dispositionAck:
				if err := d.Ack(false); err != nil {
					c.logger.Error("Failed to Ack message", "correlation_id", correlationID, "error", err)
				}
			case dispositionDeadLetter:
				if err := d.Nack(false, false); err != nil {
					c.logger.Error("Failed to reject message", "correlation_id", correlationID, "error", err)
				}
			case dispositionRequeue:
				select {
				case <-ctx.Done():
				case <-time.After(c.opts.RetryDelay):
				}
				if err := d.Nack(false, true); err != nil {
					c.logger.Error("Failed to requeue message", "correlation_id", correlationID, "error", err)
				}
			}
		}
	}
}

// handle decides what happens to a delivery. Only non-retryable failures that were recorded are dropped
func (c *RabbitMQConsumer) handle(ctx context.Context, correlationID string, body []byte) disposition {
	var ev models.ChangeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		c.logger.Error("Failed to unmarshal message", "correlation_id", correlationID, "error", err)
		return c.deadLetter(ctx, correlationID, ev, body, syncerr.Routingf("malformed change event: %v", err))
	}

	err := c.handler.ProcessMessage(ctx, correlationID, ev)
	if err == nil {
		metrics.ConsumerMessages.WithLabelValues("success", "success").Inc()
		return dispositionAck
	}

	if !syncerr.Retryable(err) {
		return c.deadLetter(ctx, correlationID, ev, body, err)
	}

	c.logger.Error("Processing failed, requeueing", "correlation_id", correlationID, "error", err)
	metrics.ConsumerMessages.WithLabelValues("requeued", syncerr.Kind(err)).Inc()
	return dispositionRequeue
}

func (c *RabbitMQConsumer) deadLetter(ctx context.Context, correlationID string, ev models.ChangeEvent, body []byte, cause error) disposition {
	if err := c.feedback.HandleDeadLetter(ctx, correlationID, ev, body, cause); err != nil {
		metrics.ConsumerMessages.WithLabelValues("requeued", "feedback").Inc()
		return dispositionRequeue
	}

	metrics.ConsumerMessages.WithLabelValues("dead_letter", syncerr.Kind(cause)).Inc()
	metrics.ConsumerDeadLetters.WithLabelValues(ev.TableName).Inc()
	return dispositionDeadLetter
}

func correlationIDOf(headers amqp.Table, messageID string) string {
	if v, ok := headers["correlation_id"].(string); ok && v != "" {
		return v
	}
	if messageID != "" {
		return messageID
	}
	return uuid.NewString()
}

// Close gracefully terminates RabbitMQ resources
func (c *RabbitMQConsumer) Close() {
	c.logger.Info("Shutting down RabbitMQ consumer")
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

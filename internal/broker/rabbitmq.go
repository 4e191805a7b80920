package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

const confirmTimeout = 10 * time.Second

// RabbitMQPublisher injects change events onto the event exchange, one confirmed publish at a time.
// It backs `hcwctl publish`, which replays a captured event into the running sync.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

// NewRabbitMQPublisher opens a confirm-mode channel on the given topic exchange
func NewRabbitMQPublisher(url, exchange string, l *slog.Logger) (*RabbitMQPublisher, error) {
	c, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := c.Channel()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to declare topic exchange: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to activate Publisher Confirms: %w", err)
	}

	return &RabbitMQPublisher{conn: c, channel: ch, exchange: exchange, logger: l}, nil
}

// RoutingKey derives the topic a change event is published under, e.g. openmrs.patient_appointment.u
func RoutingKey(ev models.ChangeEvent) string {
	return "openmrs." + ev.TableName + "." + ev.Operation
}

func publishing(correlationID string, body []byte) amqp.Publishing {
	return amqp.Publishing{
		Headers:      amqp.Table{"correlation_id": correlationID},
		MessageId:    correlationID,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}
}

// Publish sends the event and blocks until the broker confirms it
func (p *RabbitMQPublisher) Publish(ctx context.Context, correlationID string, ev models.ChangeEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to serialize change event: %w", err)
	}

	routingKey := RoutingKey(ev)
	l := p.logger.With("correlation_id", correlationID, "routing_key", routingKey)

	deferred, err := p.channel.PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, false, false, publishing(correlationID, body))
	if err != nil {
		return fmt.Errorf("publish call failed: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-deferred.Done():
		if !deferred.Acked() {
			return fmt.Errorf("RabbitMQ NACK received: message not persisted")
		}
		l.Debug("Change event confirmed by broker")
		return nil
	case <-time.After(confirmTimeout):
		return fmt.Errorf("publisher confirm timeout")
	}
}

func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

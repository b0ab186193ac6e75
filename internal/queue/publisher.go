package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends agency-sync messages to RabbitMQ.  Each publish opens its
// own connection, so a broker outage never wedges request handling; errors
// are logged and returned for the caller to ignore.
type Publisher struct {
	url   string
	queue string
	log   *zap.Logger
}

func NewPublisher(url string, log *zap.Logger) *Publisher {
	return &Publisher{url: url, queue: AgencySyncQueue, log: log.Named("agency-publisher")}
}

// PublishAgencySync publishes msg as a persistent JSON message.
func (p *Publisher) PublishAgencySync(ctx context.Context, msg AgencySyncMessage) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("dial failed", zap.Error(err))
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("channel open failed", zap.Error(err))
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.log.Warn("queue declare failed", zap.Error(err))
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal agency sync: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.log.Warn("publish failed", zap.Error(err), zap.Int64("booking_id", msg.BookingID))
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	p.log.Debug("published", zap.Int64("booking_id", msg.BookingID), zap.String("agency", msg.Agency))
	return nil
}

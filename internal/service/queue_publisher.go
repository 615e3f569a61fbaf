// Package service publishes lot events to RabbitMQ.  Failures are returned
// so callers can log them; they never interrupt the request that caused the
// event.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/lot-auction/internal/queue"
)

// Publisher sends lot events to the broker.
type Publisher interface {
	Publish(ctx context.Context, ev queue.LotEvent) error
}

// NopPublisher drops every event.  It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.LotEvent) error { return nil }

// AMQPPublisher dials the broker for each event and publishes a persistent
// JSON message to queue.EventsQueue on the default exchange.
type AMQPPublisher struct {
	URL         string
	DialTimeout time.Duration
}

// NewPublisher returns an AMQPPublisher for url, or a NopPublisher when url
// is empty.
func NewPublisher(url string) Publisher {
	if url == "" {
		return NopPublisher{}
	}
	return &AMQPPublisher{URL: url, DialTimeout: 2 * time.Second}
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.LotEvent) error {
	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(p.DialTimeout)})
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue.EventsQueue, true, false, false, false, nil); err != nil {
		return err
	}

	pub, err := newPublishing(ev)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, "", queue.EventsQueue, false, false, pub)
}

func newPublishing(ev queue.LotEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(ev.Type),
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}, nil
}

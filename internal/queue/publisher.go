package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends AuthEvents to RabbitMQ. Each call dials its own
// connection, so a broker outage only affects the events published while
// it lasts. Errors are logged and returned; callers are expected to carry
// on without them.
type Publisher struct {
	URL        string
	Queue      string
	ResetQueue string
	Log        logrus.FieldLogger
}

func NewPublisher(url string, log logrus.FieldLogger) *Publisher {
	return &Publisher{URL: url, Queue: AuthEventsQueue, ResetQueue: PasswordResetQueue, Log: log}
}

type delivery struct {
	queue string
	ev    AuthEvent
}

// deliveries lists the messages ev turns into. The events queue always
// gets a redacted copy; a reset token goes to the reset queue only.
func (p *Publisher) deliveries(ev AuthEvent) []delivery {
	out := []delivery{{queue: p.Queue, ev: ev.Redacted()}}
	if ev.ResetToken != "" {
		out = append(out, delivery{queue: p.ResetQueue, ev: ev})
	}
	return out
}

// Publish sends ev as persistent JSON messages, see deliveries.
func (p *Publisher) Publish(ctx context.Context, ev AuthEvent) error {
	if err := p.publish(ctx, ev); err != nil {
		p.Log.WithError(err).WithField("event", ev.Type).Warn("rabbitmq: publish failed")
		return err
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, ev AuthEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	for _, d := range p.deliveries(ev) {
		body, err := json.Marshal(d.ev)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if _, err := ch.QueueDeclare(d.queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", d.queue, err)
		}
		err = ch.PublishWithContext(ctx, "", d.queue, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    ev.OccurredAt,
			Type:         ev.Type,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish %s: %w", d.queue, err)
		}
	}
	return nil
}

// Discard drops every event. It is used when EVENTS_ENABLED is off.
type Discard struct{}

func (Discard) Publish(context.Context, AuthEvent) error { return nil }

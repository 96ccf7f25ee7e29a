package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/resource-booking/internal/model"
)

// Publisher sends booking events to RabbitMQ, dialing once per publish.
type Publisher struct {
	url string
	log *zap.Logger
	now func() time.Time
}

func NewPublisher(url string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, log: log, now: time.Now}
}

func (p *Publisher) PublishConfirmed(ctx context.Context, b model.Booking, res model.Resource) error {
	return p.Publish(ctx, NewBookingEvent(TypeBookingConfirmed, b, res, p.now()))
}

func (p *Publisher) PublishCancelled(ctx context.Context, b model.Booking, res model.Resource) error {
	return p.Publish(ctx, NewBookingEvent(TypeBookingCancelled, b, res, p.now()))
}

// Publish declares the durable queue named after ev.Type and publishes ev
// as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, ev BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("rabbitmq dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(ev.Type, true, false, false, false, nil); err != nil {
		p.log.Warn("rabbitmq queue declare failed", zap.String("queue", ev.Type), zap.Error(err))
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         ev.Type,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", ev.Type, false, false, msg); err != nil {
		p.log.Warn("rabbitmq publish failed", zap.String("queue", ev.Type), zap.Error(err))
		return err
	}
	p.log.Debug("booking event published",
		zap.String("type", ev.Type), zap.Uint64("booking_id", ev.BookingID), zap.String("message_id", msg.MessageId))
	return nil
}

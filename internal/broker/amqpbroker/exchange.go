package amqpbroker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/shardbus/internal/broker"
)

// Exchange — обменник, объявленный на своём канале.
type Exchange struct {
	name string
	ch   *amqp.Channel
}

// Name возвращает имя обменника.
func (e *Exchange) Name() string {
	return e.name
}

// Publish публикует сообщение в обменник с routing key.
func (e *Exchange) Publish(ctx context.Context, routingKey string, msg broker.Publishing) error {
	deliveryMode := amqp.Transient
	if msg.Persistent {
		deliveryMode = amqp.Persistent // сообщение переживёт рестарт RabbitMQ
	}

	err := e.ch.PublishWithContext(
		ctx,
		e.name,     // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			Headers:      amqp.Table(msg.Headers),
			ContentType:  msg.ContentType,
			DeliveryMode: deliveryMode,
			MessageId:    msg.MessageID,
			Timestamp:    msg.Timestamp,
			Body:         msg.Body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", e.name, routingKey, err)
	}

	return nil
}

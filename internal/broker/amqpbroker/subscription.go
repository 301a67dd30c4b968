package amqpbroker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/shardbus/internal/broker"
)

// ErrAlreadyDispatching — Each уже вызван для этой подписки.
var ErrAlreadyDispatching = errors.New("subscription already has a handler")

// Queue — очередь, объявленная на своём канале.
type Queue struct {
	name   string
	ch     *amqp.Channel
	logger *slog.Logger
}

// Name возвращает имя очереди.
func (q *Queue) Name() string {
	return q.name
}

// Bind привязывает очередь к exchange по routing key.
func (q *Queue) Bind(exchange broker.Exchange, routingKey string) error {
	err := q.ch.QueueBind(
		q.name,          // queue name
		routingKey,      // routing key
		exchange.Name(), // exchange
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", q.name, exchange.Name(), err)
	}

	q.logger.Debug("queue bound", "exchange", exchange.Name(), "routing_key", routingKey)
	return nil
}

// Subscribe начинает потребление из очереди.
func (q *Queue) Subscribe(opts broker.SubscribeOptions) (broker.Subscription, error) {
	if opts.Prefetch > 0 {
		if err := q.ch.Qos(opts.Prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("set qos: %w", err)
		}
	}

	// тег нужен для Cancel, поэтому не отдаём его генерацию библиотеке
	tag := opts.ConsumerTag
	if tag == "" {
		tag = "shardbus-" + uuid.NewString()
	}

	deliveries, err := q.ch.Consume(
		q.name,          // queue
		tag,             // consumer tag
		!opts.ManualAck, // auto-ack
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", q.name, err)
	}

	q.logger.Info("subscription opened", "consumer_tag", tag, "manual_ack", opts.ManualAck)

	return &Subscription{
		ch:         q.ch,
		tag:        tag,
		manualAck:  opts.ManualAck,
		deliveries: deliveries,
		logger:     q.logger.With("consumer_tag", tag),
	}, nil
}

// Subscription — подписка на очередь.
type Subscription struct {
	ch         *amqp.Channel
	tag        string
	manualAck  bool
	deliveries <-chan amqp.Delivery
	logger     *slog.Logger

	mu          sync.Mutex
	dispatching bool
	cancelled   bool
}

// Each запускает горутину, которая передаёт каждое сообщение в fn.
// Горутина завершается, когда брокер закрывает канал доставки
// (после Cancel или разрыва соединения).
func (s *Subscription) Each(fn func(*broker.Delivery)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dispatching {
		return ErrAlreadyDispatching
	}
	s.dispatching = true

	go func() {
		for raw := range s.deliveries {
			fn(s.toDelivery(raw))
		}
		s.logger.Debug("deliveries channel closed")
	}()

	return nil
}

// toDelivery переводит AMQP доставку в broker.Delivery.
func (s *Subscription) toDelivery(raw amqp.Delivery) *broker.Delivery {
	d := &broker.Delivery{
		Headers:     broker.Table(raw.Headers),
		ContentType: raw.ContentType,
		MessageID:   raw.MessageId,
		RoutingKey:  raw.RoutingKey,
		Exchange:    raw.Exchange,
		Timestamp:   raw.Timestamp,
		Redelivered: raw.Redelivered,
		Body:        raw.Body,
	}
	if s.manualAck {
		d.Acknowledger = acknowledger{raw: raw}
	}
	return d
}

// Cancel отменяет подписку. Повторный вызов ничего не делает.
func (s *Subscription) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return nil
	}
	s.cancelled = true

	if err := s.ch.Cancel(s.tag, false); err != nil {
		// канал закрыт вместе с соединением — подписки уже нет
		if errors.Is(err, amqp.ErrClosed) {
			return nil
		}
		return fmt.Errorf("cancel %s: %w", s.tag, err)
	}

	s.logger.Info("subscription cancelled")
	return nil
}

// acknowledger подтверждает одно AMQP сообщение.
type acknowledger struct {
	raw amqp.Delivery
}

func (a acknowledger) Ack() error {
	return a.raw.Ack(false)
}

func (a acknowledger) Nack(requeue bool) error {
	return a.raw.Nack(false, requeue)
}

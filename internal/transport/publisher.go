package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/shardbus/internal/broker"
)

// Publisher публикует сообщения на случайно выбранный узел.
//
// Узел и routing key выбираются независимо: узел определяет, какой
// брокер принимает публикацию, routing key определяет очередь.
type Publisher struct {
	system    *System
	exchanges []broker.Exchange
	logger    *slog.Logger
}

func newPublisher(s *System, exchanges []broker.Exchange) *Publisher {
	return &Publisher{
		system:    s,
		exchanges: exchanges,
		logger:    s.logger,
	}
}

// Publish публикует сообщение.
//
//  1. string и []byte публикуются без изменений, остальное кодируется Encoder
//  2. exchange выбирается случайно (равномерно по узлам)
//  3. routing key — System.SelectRoutingKey от исходного сообщения
//
// Подтверждение от брокера не ожидается.
func (p *Publisher) Publish(ctx context.Context, msg any) error {
	body, contentType, err := p.payload(msg)
	if err != nil {
		return err
	}

	node := p.system.rand.IntN(len(p.exchanges))
	routingKey := p.system.SelectRoutingKey(msg)

	return p.publish(ctx, node, routingKey, body, contentType)
}

// PublishTo публикует сообщение с явно указанным routing key.
// Ключ должен входить в пространство routing keys.
func (p *Publisher) PublishTo(ctx context.Context, msg any, routingKey string) error {
	if !p.system.hasRoutingKey(routingKey) {
		return fmt.Errorf("%w: %q", ErrUnknownRoutingKey, routingKey)
	}

	body, contentType, err := p.payload(msg)
	if err != nil {
		return err
	}

	node := p.system.rand.IntN(len(p.exchanges))

	return p.publish(ctx, node, routingKey, body, contentType)
}

// payload возвращает тело сообщения и его content type.
func (p *Publisher) payload(msg any) ([]byte, string, error) {
	switch m := msg.(type) {
	case string:
		return []byte(m), ContentTypeRaw, nil
	case []byte:
		return m, ContentTypeRaw, nil
	}

	body, err := p.system.EncodeMessage(msg)
	if err != nil {
		return nil, "", fmt.Errorf("encode message: %w", err)
	}
	return body, p.system.encoder.ContentType(), nil
}

func (p *Publisher) publish(ctx context.Context, node int, routingKey string, body []byte, contentType string) error {
	if p.system.isClosed() {
		return ErrClosed
	}

	msg := broker.Publishing{
		ContentType: contentType,
		MessageID:   uuid.NewString(),
		Timestamp:   time.Now(),
		Persistent:  p.system.queueOpts.Durable,
		Body:        body,
	}

	ex := p.exchanges[node]
	if err := ex.Publish(ctx, routingKey, msg); err != nil {
		p.system.metrics.PublishFailed(node)
		return fmt.Errorf("node %d: %w", node, err)
	}
	p.system.metrics.Published(node)

	p.system.nodeLogger(node).Debug("published message",
		"exchange", ex.Name(),
		"routing_key", routingKey,
		"message_id", msg.MessageID,
		"bytes", len(body),
	)

	return nil
}

package amqpbroker

import (
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/shardbus/internal/broker"
)

// Channel — обёртка над AMQP каналом.
type Channel struct {
	ch     *amqp.Channel
	logger *slog.Logger
}

// Exchange объявляет обменник или, при opts.Passive, проверяет,
// что он уже существует.
func (c *Channel) Exchange(name string, opts broker.ExchangeOptions) (broker.Exchange, error) {
	kind := opts.Type
	if kind == "" {
		kind = broker.ExchangeKindDirect
	}

	declare := c.ch.ExchangeDeclare
	if opts.Passive {
		declare = c.ch.ExchangeDeclarePassive
	}

	err := declare(
		name,            // name
		kind,            // type
		opts.Durable,    // durable
		opts.AutoDelete, // auto-deleted
		opts.Internal,   // internal
		false,           // no-wait
		amqp.Table(opts.Args),
	)
	if err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", name, err)
	}

	c.logger.Debug("exchange declared",
		"exchange", name,
		"type", kind,
		"passive", opts.Passive,
	)

	return &Exchange{name: name, ch: c.ch}, nil
}

// Queue объявляет очередь или, при opts.Passive, проверяет,
// что она уже существует.
func (c *Channel) Queue(name string, opts broker.QueueOptions) (broker.Queue, error) {
	declare := c.ch.QueueDeclare
	if opts.Passive {
		declare = c.ch.QueueDeclarePassive
	}

	q, err := declare(
		name,            // name
		opts.Durable,    // durable
		opts.AutoDelete, // delete when unused
		opts.Exclusive,  // exclusive
		false,           // no-wait
		amqp.Table(opts.Args),
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", name, err)
	}

	c.logger.Debug("queue declared",
		"queue", q.Name,
		"messages", q.Messages,
		"consumers", q.Consumers,
		"passive", opts.Passive,
	)

	return &Queue{name: q.Name, ch: c.ch, logger: c.logger.With("queue", q.Name)}, nil
}

// Close закрывает канал.
func (c *Channel) Close() error {
	if err := c.ch.Close(); err != nil {
		return fmt.Errorf("close channel: %w", err)
	}
	return nil
}

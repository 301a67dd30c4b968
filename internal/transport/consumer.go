package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/shardbus/internal/broker"
	"github.com/shaiso/shardbus/internal/telemetry"
)

// Handler — функция обработки сообщения.
// nil — сообщение подтверждается (ack), error — возвращается в очередь (nack).
// Handler может подтвердить доставку сам через d.Ack/d.Nack, тогда
// результат Handler на подтверждение не влияет.
type Handler func(ctx context.Context, d *broker.Delivery) error

type consumerState int

const (
	consumerIdle consumerState = iota
	consumerActive
	consumerStopped
)

// Consumer подписывается на очереди всех узлов и передаёт сообщения
// в один Handler.
//
// Состояния: Idle → Active (Each) → Stopped (Stop). Повторный Each
// не допускается. Handler вызывается из горутин подписок, по одной на
// очередь, поэтому вызовы для разных очередей идут параллельно.
type Consumer struct {
	system   *System
	queues   []broker.Queue
	prefetch int
	metrics  Metrics
	logger   *slog.Logger

	mu    sync.Mutex
	state consumerState
	subs  []broker.Subscription
	done  chan struct{}
}

func newConsumer(s *System, queues []broker.Queue) *Consumer {
	return &Consumer{
		system:   s,
		queues:   queues,
		prefetch: s.prefetch,
		metrics:  s.metrics,
		logger:   s.logger,
		done:     make(chan struct{}),
	}
}

// Each открывает подписку с ручным ack на каждую очередь и возвращает
// управление, не дожидаясь сообщений.
//
// Каждое сообщение передаётся в h с контекстом ctx. После h:
//   - nil → Ack
//   - error → Nack с requeue
//   - panic → Nack без requeue
//
// Отмена ctx останавливает consumer, как Stop. Если подписка на
// какую-либо очередь не удалась, открытые подписки отменяются и
// consumer остаётся в Idle.
func (c *Consumer) Each(ctx context.Context, h Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case consumerActive:
		return ErrConsumerActive
	case consumerStopped:
		return ErrConsumerStopped
	}

	if c.system.isClosed() {
		return ErrClosed
	}

	subs := make([]broker.Subscription, 0, len(c.queues))
	for _, q := range c.queues {
		sub, err := c.subscribe(ctx, q, h)
		if err != nil {
			cancelAll(subs)
			return err
		}
		subs = append(subs, sub)
	}

	c.subs = subs
	c.state = consumerActive
	c.metrics.SubscriptionsChanged(len(subs))

	go func() {
		select {
		case <-ctx.Done():
			c.Stop()
		case <-c.done:
		}
	}()

	c.logger.Info("consumer started", "queues", len(subs))
	return nil
}

func (c *Consumer) subscribe(ctx context.Context, q broker.Queue, h Handler) (broker.Subscription, error) {
	sub, err := q.Subscribe(broker.SubscribeOptions{
		ManualAck:   true,
		Prefetch:    c.prefetch,
		ConsumerTag: "shardbus-" + q.Name() + "-" + uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", q.Name(), err)
	}

	if err := sub.Each(c.dispatcher(ctx, q.Name(), h)); err != nil {
		sub.Cancel()
		return nil, fmt.Errorf("subscribe %s: %w", q.Name(), err)
	}

	return sub, nil
}

// dispatcher возвращает функцию доставки для очереди queue.
func (c *Consumer) dispatcher(ctx context.Context, queue string, h Handler) func(*broker.Delivery) {
	logger := telemetry.WithQueue(c.logger, queue)
	// обработчик получает логгер очереди через telemetry.FromContext
	ctx = telemetry.WithLogger(ctx, logger)

	return func(d *broker.Delivery) {
		start := time.Now()
		outcome := handleDelivery(ctx, logger, h, d)
		c.metrics.Delivered(queue, outcome, time.Since(start))
	}
}

// handleDelivery вызывает обработчик и подтверждает или отклоняет сообщение.
// Если обработчик сам вызвал Ack или Nack, повторного подтверждения нет.
func handleDelivery(ctx context.Context, logger *slog.Logger, h Handler, d *broker.Delivery) (outcome string) {
	settle := &settleOnce{inner: d.Acknowledger}
	d.Acknowledger = settle

	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panicked",
				"message_id", d.MessageID,
				"routing_key", d.RoutingKey,
				"panic", r,
			)
			outcome = settle.finish(logger, d, OutcomeRejected)
		}
	}()

	logger.Debug("received message",
		"message_id", d.MessageID,
		"routing_key", d.RoutingKey,
	)

	if err := h(ctx, d); err != nil {
		logger.Error("handler failed",
			"message_id", d.MessageID,
			"routing_key", d.RoutingKey,
			"error", err,
		)
		return settle.finish(logger, d, OutcomeRequeued)
	}

	return settle.finish(logger, d, OutcomeAcked)
}

// settleOnce пропускает к брокеру только первое подтверждение доставки.
type settleOnce struct {
	inner broker.Acknowledger

	mu      sync.Mutex
	outcome string
}

func (s *settleOnce) Ack() error {
	return s.settle(OutcomeAcked)
}

func (s *settleOnce) Nack(requeue bool) error {
	if requeue {
		return s.settle(OutcomeRequeued)
	}
	return s.settle(OutcomeRejected)
}

func (s *settleOnce) settle(outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outcome != "" {
		return ErrAlreadySettled
	}
	if s.inner == nil {
		return broker.ErrAutoAck
	}
	s.outcome = outcome

	if outcome == OutcomeAcked {
		return s.inner.Ack()
	}
	return s.inner.Nack(outcome == OutcomeRequeued)
}

// finish подтверждает доставку с outcome, если обработчик не сделал
// этого сам, и возвращает фактический исход.
func (s *settleOnce) finish(logger *slog.Logger, d *broker.Delivery, outcome string) string {
	err := s.settle(outcome)
	switch {
	case errors.Is(err, ErrAlreadySettled):
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.outcome
	case err != nil:
		logger.Warn("failed to settle message",
			"message_id", d.MessageID,
			"outcome", outcome,
			"error", err,
		)
	}
	return outcome
}

// Stop отменяет все подписки. Уже начатые вызовы Handler не прерываются
// и не ожидаются. Вне состояния Active ничего не делает.
func (c *Consumer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != consumerActive {
		return nil
	}
	c.state = consumerStopped
	close(c.done)

	subs := c.subs
	c.subs = nil

	err := cancelAll(subs)
	c.metrics.SubscriptionsChanged(-len(subs))

	c.logger.Info("consumer stopped", "queues", len(subs))
	return err
}

// Active сообщает, есть ли у consumer открытые подписки.
func (c *Consumer) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == consumerActive && len(c.subs) > 0
}

func cancelAll(subs []broker.Subscription) error {
	var errs []error
	for _, sub := range subs {
		if err := sub.Cancel(); err != nil {
			errs = append(errs, fmt.Errorf("cancel subscription: %w", err))
		}
	}
	return errors.Join(errs...)
}

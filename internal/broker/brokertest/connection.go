package brokertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shaiso/shardbus/internal/broker"
)

// Connection — соединение с узлом кластера.
type Connection struct {
	broker  *Broker
	address string

	mu     sync.Mutex
	closed bool
	subs   []*Subscription
}

// Address возвращает адрес узла соединения.
func (c *Connection) Address() string {
	return c.address
}

// Channel открывает канал.
func (c *Connection) Channel() (broker.Channel, error) {
	if c.Closed() {
		return nil, fmt.Errorf("open channel: %w", ErrClosed)
	}
	return &Channel{conn: c}, nil
}

// Close закрывает соединение и отменяет его подписки.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
	return nil
}

// Closed сообщает, закрыто ли соединение.
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connection) track(s *Subscription) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.subs = append(c.subs, s)
	return nil
}

// Channel — канал. Закрывается вместе с соединением.
type Channel struct {
	conn *Connection

	mu     sync.Mutex
	closed bool
}

func (ch *Channel) usable() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed || ch.conn.Closed() {
		return ErrClosed
	}
	return nil
}

// Exchange объявляет обменник или, при opts.Passive, ищет существующий.
func (ch *Channel) Exchange(name string, opts broker.ExchangeOptions) (broker.Exchange, error) {
	if err := ch.usable(); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", name, err)
	}

	b := ch.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	b.declarations = append(b.declarations, Declaration{
		Address:         ch.conn.address,
		Kind:            "exchange",
		Name:            name,
		ExchangeOptions: opts,
	})

	_, exists := b.exchanges[name]
	switch {
	case opts.Passive && !exists:
		return nil, fmt.Errorf("declare exchange %s: %w", name, ErrNotFound)
	case !exists:
		b.exchanges[name] = opts
	}

	return &Exchange{conn: ch.conn, name: name}, nil
}

// Queue объявляет очередь или, при opts.Passive, ищет существующую.
func (ch *Channel) Queue(name string, opts broker.QueueOptions) (broker.Queue, error) {
	if err := ch.usable(); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", name, err)
	}

	b := ch.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	b.declarations = append(b.declarations, Declaration{
		Address:      ch.conn.address,
		Kind:         "queue",
		Name:         name,
		QueueOptions: opts,
	})

	_, exists := b.queues[name]
	switch {
	case opts.Passive && !exists:
		return nil, fmt.Errorf("declare queue %s: %w", name, ErrNotFound)
	case !exists:
		b.queues[name] = &queueState{
			name: name,
			ch:   make(chan *broker.Delivery, queueCapacity),
		}
	}

	return &Queue{conn: ch.conn, name: name}, nil
}

// Close закрывает канал.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.closed = true
	return nil
}

// Exchange — обменник кластера, доступный через соединение.
type Exchange struct {
	conn *Connection
	name string
}

// Name возвращает имя обменника.
func (e *Exchange) Name() string {
	return e.name
}

// Publish доставляет сообщение во все очереди, привязанные с routingKey.
func (e *Exchange) Publish(ctx context.Context, routingKey string, msg broker.Publishing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.conn.Closed() {
		return fmt.Errorf("publish to %s/%s: %w", e.name, routingKey, ErrClosed)
	}

	b := e.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.exchanges[e.name]; !ok {
		return fmt.Errorf("publish to %s/%s: %w", e.name, routingKey, ErrNotFound)
	}

	b.published = append(b.published, Published{
		Address:    e.conn.address,
		Exchange:   e.name,
		RoutingKey: routingKey,
		Publishing: msg,
	})

	for _, binding := range b.bindings {
		if binding.Exchange != e.name || binding.RoutingKey != routingKey {
			continue
		}
		q := b.queues[binding.Queue]

		d := &broker.Delivery{
			Headers:     msg.Headers,
			ContentType: msg.ContentType,
			MessageID:   msg.MessageID,
			RoutingKey:  routingKey,
			Exchange:    e.name,
			Timestamp:   msg.Timestamp,
			Body:        append([]byte(nil), msg.Body...),
		}
		if d.Timestamp.IsZero() {
			d.Timestamp = time.Now()
		}
		d.Acknowledger = &acknowledger{broker: b, queue: q}

		select {
		case q.ch <- d:
		default:
			return fmt.Errorf("publish to %s/%s: queue %s: %w", e.name, routingKey, q.name, ErrQueueFull)
		}
	}

	return nil
}

// Queue — очередь кластера, доступная через соединение.
type Queue struct {
	conn *Connection
	name string
}

// Name возвращает имя очереди.
func (q *Queue) Name() string {
	return q.name
}

// Bind привязывает очередь к обменнику.
func (q *Queue) Bind(exchange broker.Exchange, routingKey string) error {
	if q.conn.Closed() {
		return fmt.Errorf("bind queue %s: %w", q.name, ErrClosed)
	}

	b := q.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.exchanges[exchange.Name()]; !ok {
		return fmt.Errorf("bind queue %s to %s: %w", q.name, exchange.Name(), ErrNotFound)
	}

	binding := Binding{Exchange: exchange.Name(), Queue: q.name, RoutingKey: routingKey}
	for _, existing := range b.bindings {
		if existing == binding {
			return nil
		}
	}
	b.bindings = append(b.bindings, binding)
	return nil
}

// Subscribe открывает подписку на очередь.
func (q *Queue) Subscribe(opts broker.SubscribeOptions) (broker.Subscription, error) {
	b := q.conn.broker
	b.mu.Lock()
	if err := b.subscribeErr[q.name]; err != nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("consume %s: %w", q.name, err)
	}
	state, ok := b.queues[q.name]
	if !ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("consume %s: %w", q.name, ErrNotFound)
	}
	state.subs++
	b.mu.Unlock()

	s := &Subscription{
		broker:    b,
		queue:     state,
		manualAck: opts.ManualAck,
		tag:       opts.ConsumerTag,
		done:      make(chan struct{}),
	}
	if err := q.conn.track(s); err != nil {
		s.Cancel()
		return nil, fmt.Errorf("consume %s: %w", q.name, err)
	}
	return s, nil
}

// Subscription — подписка на очередь.
type Subscription struct {
	broker    *Broker
	queue     *queueState
	manualAck bool
	tag       string

	once sync.Once
	done chan struct{}

	mu      sync.Mutex
	started bool
}

// Tag возвращает consumer tag подписки.
func (s *Subscription) Tag() string {
	return s.tag
}

// Each запускает доставку сообщений в fn в отдельной горутине.
func (s *Subscription) Each(fn func(*broker.Delivery)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("subscription %s already dispatching", s.tag)
	}
	s.started = true

	go func() {
		for {
			// отмена важнее ожидающих сообщений
			select {
			case <-s.done:
				return
			default:
			}

			select {
			case <-s.done:
				return
			case d := <-s.queue.ch:
				if !s.manualAck {
					d.Acknowledger = nil
				}
				fn(d)
			}
		}
	}()

	return nil
}

// Cancel отменяет подписку. Повторный вызов ничего не делает.
func (s *Subscription) Cancel() error {
	s.once.Do(func() {
		close(s.done)

		s.broker.mu.Lock()
		s.queue.subs--
		s.broker.mu.Unlock()
	})
	return nil
}

// acknowledger учитывает ack/nack в состоянии очереди.
type acknowledger struct {
	broker *Broker
	queue  *queueState

	mu   sync.Mutex
	done bool
}

func (a *acknowledger) settle() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.done {
		return ErrAlreadyAcknowledged
	}
	a.done = true
	return nil
}

func (a *acknowledger) Ack() error {
	if err := a.settle(); err != nil {
		return err
	}

	a.broker.mu.Lock()
	defer a.broker.mu.Unlock()
	a.queue.acked++
	return nil
}

func (a *acknowledger) Nack(requeue bool) error {
	if err := a.settle(); err != nil {
		return err
	}

	a.broker.mu.Lock()
	defer a.broker.mu.Unlock()
	a.queue.nacked++
	if requeue {
		a.queue.requeue++
	}
	return nil
}

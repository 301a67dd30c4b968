// Package brokertest — кластер брокера в памяти для тестов транспорта.
//
// Все адреса — узлы одного кластера: exchanges, queues и bindings общие,
// как в кластере RabbitMQ, поэтому публикация через любой узел попадает
// в очередь, объявленную через другой. Маршрутизация direct: сообщение
// получают все очереди, привязанные к обменнику с тем же routing key.
// Passive-поиск несуществующего объекта возвращает ErrNotFound, как AMQP 404.
//
// Все вызовы записываются вместе с адресом узла, чтобы тесты могли
// проверить топологию, публикации и подтверждения. Requeue после Nack
// только учитывается, повторной доставки нет.
package brokertest

import (
	"context"
	"errors"
	"sync"

	"github.com/shaiso/shardbus/internal/broker"
)

// Ошибки брокера в памяти.
var (
	// ErrNotFound — passive-поиск объекта, которого нет.
	ErrNotFound = errors.New("not found")

	// ErrClosed — операция на закрытом соединении или канале.
	ErrClosed = errors.New("closed")

	// ErrQueueFull — в очереди нет места для нового сообщения.
	ErrQueueFull = errors.New("queue is full")

	// ErrAlreadyAcknowledged — повторный ack/nack одной доставки.
	ErrAlreadyAcknowledged = errors.New("delivery already acknowledged")
)

const queueCapacity = 1024

// Declaration — запись об объявлении exchange или queue.
type Declaration struct {
	Address         string
	Kind            string // "exchange" или "queue"
	Name            string
	ExchangeOptions broker.ExchangeOptions
	QueueOptions    broker.QueueOptions
}

// Binding — привязка очереди к обменнику.
type Binding struct {
	Exchange   string
	Queue      string
	RoutingKey string
}

// Published — запись о публикации.
type Published struct {
	Address    string
	Exchange   string
	RoutingKey string
	Publishing broker.Publishing
}

// Broker — кластер в памяти. Реализует broker.ConnectionFactory.
type Broker struct {
	mu           sync.Mutex
	connectErr   map[string]error
	subscribeErr map[string]error
	connects     []string
	connections  []*Connection

	exchanges    map[string]broker.ExchangeOptions
	queues       map[string]*queueState
	bindings     []Binding
	declarations []Declaration
	published    []Published
}

type queueState struct {
	name    string
	ch      chan *broker.Delivery
	subs    int
	acked   int
	nacked  int
	requeue int
}

// New создаёт пустой кластер.
func New() *Broker {
	return &Broker{
		connectErr:   make(map[string]error),
		subscribeErr: make(map[string]error),
		exchanges:    make(map[string]broker.ExchangeOptions),
		queues:       make(map[string]*queueState),
	}
}

// FailConnect заставляет Connect на address вернуть err.
func (b *Broker) FailConnect(address string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectErr[address] = err
}

// FailSubscribe заставляет Subscribe на очередь вернуть err. nil снимает ошибку.
func (b *Broker) FailSubscribe(queue string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.subscribeErr, queue)
		return
	}
	b.subscribeErr[queue] = err
}

// Connect открывает соединение с узлом address.
func (b *Broker) Connect(ctx context.Context, address string) (broker.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.connects = append(b.connects, address)
	if err := b.connectErr[address]; err != nil {
		return nil, err
	}

	conn := &Connection{broker: b, address: address}
	b.connections = append(b.connections, conn)
	return conn, nil
}

// Connects возвращает адреса всех вызовов Connect, включая неудачные.
func (b *Broker) Connects() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.connects...)
}

// Connections возвращает все успешно открытые соединения.
func (b *Broker) Connections() []*Connection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Connection(nil), b.connections...)
}

// Declarations возвращает все объявления (active и passive).
func (b *Broker) Declarations() []Declaration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Declaration(nil), b.declarations...)
}

// Bindings возвращает привязки в порядке создания.
func (b *Broker) Bindings() []Binding {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Binding(nil), b.bindings...)
}

// Published возвращает все публикации.
func (b *Broker) Published() []Published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Published(nil), b.published...)
}

// HasExchange сообщает, объявлен ли обменник.
func (b *Broker) HasExchange(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.exchanges[name]
	return ok
}

// HasQueue сообщает, объявлена ли очередь.
func (b *Broker) HasQueue(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.queues[name]
	return ok
}

// Subscribers возвращает число активных подписок на очередь.
func (b *Broker) Subscribers(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[queue]; ok {
		return q.subs
	}
	return 0
}

// Acks возвращает число ack, nack и nack с requeue по очереди.
func (b *Broker) Acks(queue string) (acked, nacked, requeued int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[queue]; ok {
		return q.acked, q.nacked, q.requeue
	}
	return 0, 0, 0
}

// Pending возвращает число сообщений, ожидающих в очереди.
func (b *Broker) Pending(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[queue]; ok {
		return len(q.ch)
	}
	return 0
}

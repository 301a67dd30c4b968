package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/shardbus/internal/broker"
	"github.com/shaiso/shardbus/internal/telemetry"
)

// System — шардированный транспорт поверх набора узлов брокера.
//
// System владеет соединениями (по одному на узел), объявлением топологии
// и выбором routing key. Publisher и Consumer создаются из System и
// используют его соединения.
//
// Соединения, exchanges и queues инициализируются один раз и затем
// только читаются. После Disconnect System использовать нельзя.
type System struct {
	nodes        []string
	routingKeys  []string
	keySlices    [][]string
	factory      broker.ConnectionFactory
	exchangeName string
	queuePrefix  string
	exchangeOpts broker.ExchangeOptions
	queueOpts    broker.QueueOptions
	encoder      Encoder
	routing      RoutingStrategy
	rand         Rand
	prefetch     int
	metrics      Metrics
	logger       *slog.Logger

	mu          sync.Mutex
	connections []broker.Connection
	exchanges   []broker.Exchange
	queues      []broker.Queue
	consumers   []*Consumer
	closed      bool
}

// New создаёт System. Некорректная конфигурация возвращает ошибку,
// оборачивающую ErrInvalidConfig. Соединения не открываются.
func New(cfg Config) (*System, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := cfg.Rand
	if r == nil {
		r = globalRand{}
	}

	routingKeys := slices.Clone(cfg.RoutingKeys)

	routing := cfg.Routing
	if routing == nil {
		routing = RandomRouting(r, len(routingKeys))
	}

	encoder := cfg.Encoder
	if encoder == nil {
		encoder = GobEncoder{}
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	nodes := slices.Clone(cfg.Nodes)

	if len(routingKeys) < len(nodes) {
		logger.Warn("fewer routing keys than nodes, some queues will receive no messages",
			"nodes", len(nodes),
			"routing_keys", len(routingKeys),
		)
	}

	return &System{
		nodes:        nodes,
		routingKeys:  routingKeys,
		keySlices:    SliceRoutingKeys(routingKeys, len(nodes)),
		factory:      cfg.ConnectionFactory,
		exchangeName: cfg.ExchangeName,
		queuePrefix:  cfg.QueuePrefix,
		exchangeOpts: cfg.ExchangeOptions,
		queueOpts:    cfg.QueueOptions,
		encoder:      encoder,
		routing:      routing,
		rand:         r,
		prefetch:     prefetch,
		metrics:      metrics,
		logger:       logger,
	}, nil
}

// Connect открывает соединение с каждым узлом. Повторный вызов ничего
// не делает. Узлы независимы, поэтому соединения открываются параллельно.
// При ошибке уже открытые соединения закрываются.
func (s *System) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.connectLocked(ctx)
}

func (s *System) connectLocked(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if s.connections != nil {
		return nil
	}

	conns := make([]broker.Connection, len(s.nodes))

	g, gctx := errgroup.WithContext(ctx)
	for i, node := range s.nodes {
		g.Go(func() error {
			conn, err := s.factory.Connect(gctx, node)
			if err != nil {
				return fmt.Errorf("connect node %d (%s): %w", i, redact(node), err)
			}
			conns[i] = conn
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, conn := range conns {
			if conn != nil {
				conn.Close()
			}
		}
		return err
	}

	s.connections = conns
	s.logger.Info("connected to all nodes", "nodes", len(conns))

	return nil
}

// DeclareTopology открывает соединения и объявляет на каждом узле
// exchange и очередь шарда, затем привязывает очередь к exchange своего
// узла по каждому routing key из части узла.
//
// Результат кешируется: Exchanges и Queues вернут объявленные объекты.
func (s *System) DeclareTopology(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connectLocked(ctx); err != nil {
		return err
	}

	exchanges := make([]broker.Exchange, len(s.nodes))
	queues := make([]broker.Queue, len(s.nodes))

	var g errgroup.Group
	for i := range s.nodes {
		g.Go(func() error {
			ex, err := s.exchange(i, false)
			if err != nil {
				return err
			}
			q, err := s.queue(i, false)
			if err != nil {
				return err
			}
			for _, key := range s.keySlices[i] {
				if err := q.Bind(ex, key); err != nil {
					return fmt.Errorf("node %d: %w", i, err)
				}
			}
			exchanges[i], queues[i] = ex, q
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	s.exchanges, s.queues = exchanges, queues

	for _, shard := range s.Shards() {
		s.logger.Info("shard declared",
			"node", shard.Index,
			"exchange", s.exchangeName,
			"queue", shard.Queue,
			"routing_keys", len(shard.RoutingKeys),
		)
	}

	return nil
}

// AttachToExistingTopology находит уже объявленные exchanges и queues
// (passive), не создавая их.
func (s *System) AttachToExistingTopology(ctx context.Context) error {
	if _, err := s.Exchanges(ctx); err != nil {
		return err
	}
	if _, err := s.Queues(ctx); err != nil {
		return err
	}
	return nil
}

// Exchanges возвращает exchanges всех узлов в порядке узлов.
//
// Если топология ещё не получена, открывает соединения и ищет exchange
// на каждом узле в passive режиме.
func (s *System) Exchanges(ctx context.Context) ([]broker.Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connectLocked(ctx); err != nil {
		return nil, err
	}
	if s.exchanges != nil {
		return slices.Clone(s.exchanges), nil
	}

	exchanges := make([]broker.Exchange, len(s.nodes))

	var g errgroup.Group
	for i := range s.nodes {
		g.Go(func() error {
			ex, err := s.exchange(i, true)
			exchanges[i] = ex
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.exchanges = exchanges
	return slices.Clone(exchanges), nil
}

// Queues возвращает очереди всех узлов в порядке узлов.
//
// Если топология ещё не получена, открывает соединения и ищет очередь
// на каждом узле в passive режиме.
func (s *System) Queues(ctx context.Context) ([]broker.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connectLocked(ctx); err != nil {
		return nil, err
	}
	if s.queues != nil {
		return slices.Clone(s.queues), nil
	}

	queues := make([]broker.Queue, len(s.nodes))

	var g errgroup.Group
	for i := range s.nodes {
		g.Go(func() error {
			q, err := s.queue(i, true)
			queues[i] = q
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.queues = queues
	return slices.Clone(queues), nil
}

// exchange объявляет (или ищет при passive) exchange узла i на новом канале.
func (s *System) exchange(i int, passive bool) (broker.Exchange, error) {
	ch, err := s.connections[i].Channel()
	if err != nil {
		return nil, fmt.Errorf("node %d: %w", i, err)
	}

	opts := s.exchangeOpts
	opts.Type = broker.ExchangeKindDirect
	opts.Passive = passive

	ex, err := ch.Exchange(s.exchangeName, opts)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("node %d: %w", i, err)
	}
	return ex, nil
}

// queue объявляет (или ищет при passive) очередь узла i на новом канале.
func (s *System) queue(i int, passive bool) (broker.Queue, error) {
	ch, err := s.connections[i].Channel()
	if err != nil {
		return nil, fmt.Errorf("node %d: %w", i, err)
	}

	opts := s.queueOpts
	opts.Passive = passive

	q, err := ch.Queue(QueueName(s.queuePrefix, i, len(s.nodes)), opts)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("node %d: %w", i, err)
	}
	return q, nil
}

// Disconnect останавливает все consumers, созданные этим System,
// и закрывает соединения. Безопасно вызывать повторно и без Connect.
func (s *System) Disconnect() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	consumers := s.consumers
	conns := s.connections
	s.consumers = nil
	s.connections = nil
	s.exchanges = nil
	s.queues = nil
	s.mu.Unlock()

	var errs []error

	for _, c := range consumers {
		if err := c.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	for i, conn := range conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close node %d: %w", i, err))
		}
	}

	s.logger.Info("transport disconnected",
		"consumers", len(consumers),
		"connections", len(conns),
	)

	return errors.Join(errs...)
}

// EncodeMessage кодирует сообщение настроенным Encoder.
func (s *System) EncodeMessage(msg any) ([]byte, error) {
	return s.encoder.Encode(msg)
}

// SelectRoutingKey выбирает routing key для сообщения.
// Результат стратегии берётся по модулю числа ключей, поэтому любое
// целое (в том числе отрицательное) даёт корректный ключ.
func (s *System) SelectRoutingKey(msg any) string {
	k := len(s.routingKeys)
	n := s.routing.Route(msg) % k
	if n < 0 {
		n += k
	}
	return s.routingKeys[n]
}

// Publisher создаёт Publisher. Exchanges ищутся в passive режиме,
// если топология ещё не получена.
func (s *System) Publisher(ctx context.Context) (*Publisher, error) {
	exchanges, err := s.Exchanges(ctx)
	if err != nil {
		return nil, err
	}
	return newPublisher(s, exchanges), nil
}

// Consumer создаёт Consumer и регистрирует его для остановки в Disconnect.
// Очереди ищутся в passive режиме, если топология ещё не получена.
func (s *System) Consumer(ctx context.Context) (*Consumer, error) {
	queues, err := s.Queues(ctx)
	if err != nil {
		return nil, err
	}

	c := newConsumer(s, queues)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	s.consumers = append(s.consumers, c)

	return c, nil
}

// Shards возвращает план шардирования: очередь и routing keys каждого узла.
// Адреса узлов возвращаются без паролей.
func (s *System) Shards() []Shard {
	shards := make([]Shard, len(s.nodes))
	for i, node := range s.nodes {
		shards[i] = Shard{
			Index:       i,
			Node:        redact(node),
			Queue:       QueueName(s.queuePrefix, i, len(s.nodes)),
			RoutingKeys: slices.Clone(s.keySlices[i]),
		}
	}
	return shards
}

// Nodes возвращает адреса узлов.
func (s *System) Nodes() []string {
	return slices.Clone(s.nodes)
}

// RoutingKeys возвращает пространство routing keys.
func (s *System) RoutingKeys() []string {
	return slices.Clone(s.routingKeys)
}

func (s *System) hasRoutingKey(key string) bool {
	return slices.Contains(s.routingKeys, key)
}

func (s *System) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *System) nodeLogger(i int) *slog.Logger {
	return telemetry.WithNode(s.logger, i)
}

// redact скрывает пароль в адресе узла.
func redact(node string) string {
	u, err := url.Parse(node)
	if err != nil || u.User == nil {
		return node
	}
	return u.Redacted()
}

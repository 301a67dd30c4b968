package transport

import (
	"fmt"
	"log/slog"

	"github.com/shaiso/shardbus/internal/broker"
)

// Default configuration values.
const (
	defaultPrefetch = 1
)

// Config — конфигурация System. Задаётся один раз при создании.
type Config struct {
	// Nodes — адреса узлов брокера. Порядок определяет индекс шарда.
	Nodes []string

	// ConnectionFactory открывает соединения с узлами.
	ConnectionFactory broker.ConnectionFactory

	// ExchangeName — имя обменника, одинаковое на всех узлах.
	ExchangeName string

	// QueuePrefix — префикс имён очередей: <prefix><index>.
	QueuePrefix string

	// Параметры active-объявления. Type обменника всегда "direct".
	ExchangeOptions broker.ExchangeOptions
	QueueOptions    broker.QueueOptions

	// Encoder для сообщений, не являющихся string/[]byte (default: GobEncoder).
	Encoder Encoder

	// RoutingKeys — пространство routing keys, делится между узлами.
	RoutingKeys []string

	// Routing выбирает routing key (default: RandomRouting).
	Routing RoutingStrategy

	// Rand — источник для выбора узла публикации и для RandomRouting.
	// Если nil — глобальный источник math/rand/v2.
	Rand Rand

	// Prefetch — QoS prefetch каждой подписки consumer (default: 1).
	Prefetch int

	Metrics Metrics
	Logger  *slog.Logger
}

// validate проверяет обязательные поля.
func (c *Config) validate() error {
	if len(c.Nodes) == 0 {
		return ErrNoNodes
	}
	if c.ConnectionFactory == nil {
		return ErrNoConnectionFactory
	}
	if c.ExchangeName == "" {
		return ErrNoExchangeName
	}
	if c.QueuePrefix == "" {
		return ErrNoQueuePrefix
	}
	if len(c.RoutingKeys) == 0 {
		return ErrNoRoutingKeys
	}

	seen := make(map[string]struct{}, len(c.RoutingKeys))
	for _, key := range c.RoutingKeys {
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateRoutingKey, key)
		}
		seen[key] = struct{}{}
	}

	return nil
}

package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/shardbus/internal/broker"
	"github.com/shaiso/shardbus/internal/transport"
)

// Значения по умолчанию для глобальных флагов.
const (
	DefaultExchange    = "shardbus_exchange"
	DefaultQueuePrefix = "shardbus_queue_"

	defaultRoutingKeyCount = 16
)

// Options — глобальные флаги CLI. Каждый флаг можно задать переменной
// окружения, флаг имеет приоритет.
type Options struct {
	Nodes       []string
	Exchange    string
	QueuePrefix string
	RoutingKeys []string
	Durable     bool
	JSON        bool
}

// AddFlags регистрирует глобальные флаги на cmd. defaultNode используется,
// если не заданы ни --nodes, ни SHARDBUS_NODES.
func (o *Options) AddFlags(cmd *cobra.Command, defaultNode string) {
	flags := cmd.PersistentFlags()
	flags.StringSliceVar(&o.Nodes, "nodes", envList("SHARDBUS_NODES", []string{defaultNode}), "Broker node URLs, one shard per node (env SHARDBUS_NODES)")
	flags.StringVar(&o.Exchange, "exchange", envOr("SHARDBUS_EXCHANGE", DefaultExchange), "Exchange name (env SHARDBUS_EXCHANGE)")
	flags.StringVar(&o.QueuePrefix, "queue-prefix", envOr("SHARDBUS_QUEUE_PREFIX", DefaultQueuePrefix), "Queue name prefix (env SHARDBUS_QUEUE_PREFIX)")
	flags.StringSliceVar(&o.RoutingKeys, "routing-keys", envList("SHARDBUS_ROUTING_KEYS", DefaultRoutingKeys(defaultRoutingKeyCount)), "Routing key space (env SHARDBUS_ROUTING_KEYS)")
	flags.BoolVar(&o.Durable, "durable", false, "Durable exchange and queues, persistent messages")
	flags.BoolVar(&o.JSON, "json", false, "Output in JSON format")
}

// Config собирает transport.Config из флагов.
func (o *Options) Config(factory broker.ConnectionFactory, logger *slog.Logger) transport.Config {
	return transport.Config{
		Nodes:             o.Nodes,
		ConnectionFactory: factory,
		ExchangeName:      o.Exchange,
		QueuePrefix:       o.QueuePrefix,
		ExchangeOptions:   broker.ExchangeOptions{Durable: o.Durable},
		QueueOptions:      broker.QueueOptions{Durable: o.Durable},
		RoutingKeys:       o.RoutingKeys,
		Logger:            logger,
	}
}

// DefaultRoutingKeys возвращает ключи rk00, rk01, ... в количестве n.
func DefaultRoutingKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("rk%02d", i)
	}
	return keys
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envList читает список через запятую.
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
